package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/models"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// streamURL builds the websocket URL for a conversation.
func streamURL(base, conversationID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/conversations/" + conversationID + "/ws"
	return u.String(), nil
}

// follow streams frames into send, reconnecting with backoff until ctx is
// cancelled. Every reconnect starts with a fresh snapshot.
func follow(ctx context.Context, target string, send func(tea.Msg), log zerolog.Logger) {
	backoff := minBackoff
	for {
		err := stream(ctx, target, send)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("retryIn", backoff).Msg("Stream disconnected")
		send(statusMsg(fmt.Sprintf("disconnected, retrying in %s", backoff)))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func stream(ctx context.Context, target string, send func(tea.Msg)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	send(statusMsg("live"))
	for {
		var frame models.StreamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		send(frameMsg(frame))
	}
}
