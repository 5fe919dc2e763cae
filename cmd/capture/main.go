package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yungbote/voicenotes-backend/internal/capture"
)

func main() {
	configPath := flag.String("config", "", "path to capture config yaml")
	flag.Parse()

	cfg := capture.DefaultConfig()
	if *configPath != "" {
		loaded, err := capture.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if env := os.Getenv("VOICENOTES_SERVER_URL"); env != "" {
		cfg.Server.BaseURL = env
	}
	if env := os.Getenv("VOICENOTES_OWNER_ID"); env != "" {
		cfg.Server.OwnerID = env
	}
	if cfg.Server.OwnerID == "" {
		fmt.Fprintln(os.Stderr, "owner id required: set server.owner_id in the config or VOICENOTES_OWNER_ID")
		os.Exit(1)
	}

	recorder := capture.NewRecorder(cfg.Recorder)
	apiClient := capture.NewAPIClient(cfg.Server)
	machine := capture.NewMachine(recorder, apiClient, cfg.Poll)

	program := tea.NewProgram(NewModel(machine), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "capture tui: %v\n", err)
		os.Exit(1)
	}
}
