// Package main is the entry point for the midiroll API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/midiroll/pkg/api"
	"github.com/james-see/midiroll/pkg/config"
	"github.com/james-see/midiroll/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	soundFont := flag.String("soundfont", "", "SoundFont for /render (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *soundFont != "" {
		cfg.SoundFont = *soundFont
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, os.Stderr)
	fmt.Printf("Starting midiroll API server on port %d...\n", cfg.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Port)

	if err := api.StartServer(cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
