// Package parser extracts text from uploaded documents, dispatched by file
// extension. Extraction failures degrade instead of failing: the result
// carries an explicit Degraded tag and a placeholder text, so ingestion can
// proceed and downstream generation can filter the placeholder out.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ragkb/internal/domain"
)

// Result is the outcome of text extraction. When Degraded is set, Text is
// a human-readable placeholder and Reason names what went wrong.
type Result struct {
	Text     string
	Degraded bool
	Reason   string
}

// SupportedExtensions lists the extensions Parse dispatches on.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".log", ".pdf", ".doc", ".docx"}
}

// Supported reports whether a filename has a parseable extension.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}

// Parse extracts text from the file at path. Unsupported extensions return
// domain.ErrUnsupportedFormat; everything else returns a Result, degraded
// when extraction is impossible.
func Parse(path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".log":
		return parsePlain(path), nil
	case ".pdf":
		return degraded(path, "PDF text extraction is not available in this build"), nil
	case ".doc", ".docx":
		return degraded(path, "Word document text extraction is not available in this build"), nil
	default:
		return Result{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parsePlain(path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return degraded(path, fmt.Sprintf("read failed: %v", err))
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return degraded(path, "file is empty")
	}
	return Result{Text: text}
}

func degraded(path, reason string) Result {
	filename := filepath.Base(path)
	return Result{
		Text:     fmt.Sprintf("Could not extract text from %s: %s.", filename, reason),
		Degraded: true,
		Reason:   reason,
	}
}
