package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-care-assistant-service/internal/config"
	"ai-care-assistant-service/internal/observability/logging"
)

type fakeSource struct {
	err    error
	closed bool
}

func (s *fakeSource) Run(context.Context) error { return s.err }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func TestRunSource_LogsFailureAndCloses(t *testing.T) {
	var buf bytes.Buffer
	logging.InitWithWriter(logging.DefaultConfig(), &buf)
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

	src := &fakeSource{err: errors.New("broker unreachable")}
	var wg sync.WaitGroup
	runSource(context.Background(), &wg, "kafka", src, logging.WithComponent("transcript-source"))
	wg.Wait()

	out := buf.String()
	if !strings.Contains(out, "Transcript source failed") || !strings.Contains(out, "broker unreachable") {
		t.Errorf("expected failure logged, got %s", out)
	}
	if !strings.Contains(out, `"source":"kafka"`) {
		t.Errorf("expected source name logged, got %s", out)
	}
	if !src.closed {
		t.Error("expected source closed after Run returned")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	addr := lis.Addr().String()
	lis.Close()
	return addr
}

func TestRun_GRPCListenFailureLeavesNoServers(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to occupy port: %v", err)
	}
	defer taken.Close()

	cfg := config.Load()
	cfg.Service.GRPCPort = strconv.Itoa(taken.Addr().(*net.TCPAddr).Port)
	cfg.Service.HTTPPort = "0"
	cfg.Observability.MetricsAddr = freeAddr(t)

	if err := run(cfg, flags{}); err == nil {
		t.Fatal("expected error when the gRPC port is taken")
	}

	time.Sleep(100 * time.Millisecond)
	lis, err := net.Listen("tcp", cfg.Observability.MetricsAddr)
	if err != nil {
		t.Fatalf("expected metrics address to stay free, got %v", err)
	}
	lis.Close()
}
