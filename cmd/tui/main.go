package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Varun5711/talentlens/cmd/tui/ui"
	"github.com/Varun5711/talentlens/internal/client"
	"github.com/Varun5711/talentlens/internal/logger"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	baseURL := os.Getenv("AUTH_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	var program *tea.Program

	session, err := client.NewSessionManager(baseURL,
		client.WithUserAgent("talentlens-tui/1.0"),
		// the alt screen owns stdout, so client logs are discarded unless asked for
		client.WithLogger(logger.New("tui").WithOutput(logOutput())),
		client.WithSessionExpired(func() {
			if program != nil {
				program.Send(ui.SessionExpiredMsg{})
			}
		}),
	)
	if err != nil {
		fmt.Printf("Failed to create session client: %v\n", err)
		os.Exit(1)
	}

	program = tea.NewProgram(ui.NewModel(session), tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func logOutput() io.Writer {
	path := os.Getenv("TUI_LOG_FILE")
	if path == "" {
		return io.Discard
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return io.Discard
	}
	return f
}
