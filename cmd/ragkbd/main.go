package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"ragkb/internal/api"
	"ragkb/internal/app"
	"ragkb/internal/config"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragkb/config.yaml if not provided)")
	flag.Parse()

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

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to assemble components: %v", err)
	}

	router := api.NewRouter(api.NewHandler(a))
	logger.WithField("addr", cfg.Server.Addr).Info("starting http server")
	if err := http.ListenAndServe(cfg.Server.Addr, router); err != nil {
		log.Fatal(err)
	}
}
