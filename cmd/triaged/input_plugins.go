package main

import (
	"context"
	"fmt"
	"os"

	"github.com/feedtriage/triage/internal/ingestsource"
	"github.com/feedtriage/triage/internal/model"
	"github.com/feedtriage/triage/internal/otlpreceiver"
)

// NamedLogSource is the shared shape every ingestion transport exposes to
// the source multiplexer.
type NamedLogSource interface {
	Lines() <-chan model.IngestEnvelope
	Stop()
	Name() string
}

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled  bool
	TCPAddr     string
	OTLPEnabled bool
	OTLPAddr    string
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 3)
	plugins = append(plugins, tcpInputPlugin{addr: cfg.TCPAddr, enabled: cfg.TCPEnabled})
	plugins = append(plugins, otlpInputPlugin{addr: cfg.OTLPAddr, enabled: cfg.OTLPEnabled})
	plugins = append(plugins, stdinInputPlugin{})
	return plugins
}

type tcpInputPlugin struct {
	addr    string
	enabled bool
}

func (p tcpInputPlugin) Name() string  { return "tcp" }
func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	src := ingestsource.NewTCPSource(ctx, p.addr)
	if err := src.Start(); err != nil {
		return nil, fmt.Errorf("start tcp source: %w", err)
	}
	return src, nil
}

type otlpInputPlugin struct {
	addr    string
	enabled bool
}

func (p otlpInputPlugin) Name() string  { return "otlp" }
func (p otlpInputPlugin) Enabled() bool { return p.enabled }

func (p otlpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	recv := otlpreceiver.NewReceiver(p.addr)
	if err := recv.Start(); err != nil {
		return nil, fmt.Errorf("start otlp receiver: %w", err)
	}
	return recv, nil
}

type stdinInputPlugin struct{}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return ingestsource.NewStdinSource(ctx), nil
}
