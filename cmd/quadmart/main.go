// cmd/quadmart/main.go
//
// This is the entry point for the quadmart TUI.
//
// Flow:
// 1. Load .env overrides (QUADMART_HOME)
// 2. Initialize the .quadmart directory in the user's home
// 3. Launch the TUI

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/kelrowe/quadmart/internal/config"
	"github.com/kelrowe/quadmart/internal/logging"
	"github.com/kelrowe/quadmart/internal/tui"
)

func main() {
	// A .env in the working directory may override QUADMART_HOME; its
	// absence is not an error.
	_ = godotenv.Load()

	homeDir := os.Getenv("QUADMART_HOME")
	if homeDir == "" {
		var err error
		homeDir, err = os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
	}

	if err := config.InitQuadmartDir(homeDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .quadmart directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.New(homeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(homeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.Printf("quadmart session opened")

	app, err := tui.NewApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting quadmart: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
	logger.Printf("quadmart session closed")
}
