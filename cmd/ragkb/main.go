package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ragkb/internal/app"
	"ragkb/internal/config"
	"ragkb/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, kbName string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragkb/config.yaml if not provided)")
	flag.StringVar(&kbName, "kb", "", "Knowledge base to chat with (defaults to the configured default)")
	flag.Parse()
	inputs := flag.Args()

	var cfg *config.Config
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if kbName == "" {
		kbName = cfg.DefaultKB
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble components: %v", err)
	}

	// Files given on the command line are ingested before the chat starts.
	ctx := context.Background()
	for _, path := range inputs {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		result, err := a.Ingestion.IngestFile(ctx, content, filepath.Base(path), kbName, "")
		if err != nil {
			log.Fatalf("ingest %s: %v", path, err)
		}
		fmt.Printf("ingested %s: %d chunks, %d points\n", result.Filename, result.ChunkCount, result.PointCount)
	}

	m := tui.New(a.RAG, kbName, cfg.Retrieval.TopK)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
