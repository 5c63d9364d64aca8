package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"pdfchat/internal/bootstrap"
	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to a TOML or YAML config file (defaults to CONFIG_FILE or configs/config.toml)")
	flag.BoolVar(&verbose, "verbose", false, "Keep the configured log level instead of errors only")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: pdfchat [--config=config.toml] file1.pdf [file2.pdf ...]")
		os.Exit(1)
	}

	var cfg *config.Config
	var err error
	if cfgPath == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.LoadFile(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if !verbose {
		// log lines would tear the terminal UI
		cfg.Log.Level = "error"
	}

	ctx := context.Background()
	app, err := bootstrap.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer app.Close()

	docs := make([]domain.Document, 0, len(inputs))
	for _, path := range inputs {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		docs = append(docs, domain.Document{Name: filepath.Base(path), Data: data})
	}

	res, err := app.RAG.ProcessDocuments(ctx, docs)
	if errors.Is(err, domain.ErrEmptyDocument) {
		log.Fatalf("no text could be extracted from %d document(s)", len(docs))
	}
	if err != nil {
		log.Fatalf("process documents failed: %v", err)
	}

	summary := fmt.Sprintf("%d document(s), %d chunks", len(res.Documents), res.Chunks)
	if res.Truncated > 0 {
		summary += fmt.Sprintf(" (%d dropped over the chunk cap)", res.Truncated)
	}

	if _, err := tea.NewProgram(tui.New(app.RAG, summary), tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
