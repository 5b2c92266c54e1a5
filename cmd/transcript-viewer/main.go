// Command transcript-viewer follows a live conversation in the terminal.
// New messages keep the view pinned to the bottom until the user scrolls
// up; G or End jumps back to the latest message.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"ai-care-assistant-service/internal/config"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/service/scroll"
)

func main() {
	server := pflag.String("server", "http://localhost:8080", "care assistant service base URL")
	conversationID := pflag.String("conversation", "demo", "conversation id to follow")
	envFile := pflag.String("env", ".env", "optional .env file")
	logFile := pflag.String("log-file", "", "write logs to this file (the terminal is taken by the UI)")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}
	cfg := config.Load()

	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Service = "transcript-viewer"
	logging.InitWithWriter(logCfg, logOut)
	log := logging.WithComponent("transcript-viewer")

	target, err := streamURL(*server, *conversationID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }

	m := newModel(*conversationID,
		scroll.WithThreshold(int(cfg.Scroll.Threshold)),
		scroll.WithSettleDelay(cfg.Scroll.SettleDelay),
		scroll.WithScheduler(teaScheduler(send)),
	)
	p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go follow(ctx, target, send, log)

	log.Info().Str("target", target).Msg("Transcript viewer started")
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "viewer failed: %v\n", err)
		os.Exit(1)
	}
}
