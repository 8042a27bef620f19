package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/feedtriage/triage/internal/config"
	"github.com/feedtriage/triage/internal/expansion"
	"github.com/feedtriage/triage/internal/export"
	"github.com/feedtriage/triage/internal/graph"
	"github.com/feedtriage/triage/internal/httpapi"
	"github.com/feedtriage/triage/internal/ingest"
	"github.com/feedtriage/triage/internal/ontology"
	"github.com/feedtriage/triage/internal/patterns"
	"github.com/feedtriage/triage/internal/query"
	"github.com/feedtriage/triage/internal/socketrpc"
	"github.com/feedtriage/triage/internal/store"
	"github.com/feedtriage/triage/internal/tab"
)

const shutdownGrace = 10 * time.Second

// runServer starts headless log ingestion, the query engine, and every
// enabled gateway (Unix socket, HTTP API, OTLP receiver, TCP listener).
func runServer(cfg config.Config) error {
	cleanupLogger := configureRuntimeLogger(cfg.Debug)
	defer cleanupLogger()

	onto, err := ontology.Load()
	if err != nil {
		return fmt.Errorf("failed to load ontology: %w", err)
	}
	expander := expansion.New(graph.Build(onto))

	st := store.New(cfg.StoreCapacity, cfg.BroadcastCapacity)
	engine := query.New(st, expander, cfg.DefaultGreed, cfg.RankAlpha, cfg.RankBeta)
	processor := ingest.New(st)
	miner := patterns.New()
	exporter := export.New(st)

	mainTab, _ := tab.NewMain(st, store.Filter{})
	defer mainTab.Close()

	sockServer := socketrpc.NewServer(cfg.SocketPath, st, engine)
	if err := sockServer.Start(); err != nil {
		log.Printf("warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	if cfg.APIEnabled {
		apiServer := httpapi.NewServer(cfg.APIAddr, st, engine, mainTab)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(shutdownGrace)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:  cfg.TCPEnabled,
		TCPAddr:     cfg.TCPAddr,
		OTLPEnabled: cfg.OTLPEnabled,
		OTLPAddr:    cfg.OTLPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		fallback := stdinInputPlugin{}
		if fallback.Enabled() {
			if src, err := fallback.Build(ctx); err == nil {
				sources = append(sources, src)
			}
		}
	}

	mux := NewSourceMultiplexer(ctx, sources, DefaultMuxBuffer)
	mux.Start()

	printStartupBanner(cfg, mux.HasSources())

	g, gctx := errgroup.WithContext(ctx)

	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				seq, ok := processor.ProcessEnvelope(env)
				if !ok {
					continue
				}
				if e, found := st.Get(seq); found {
					miner.AddLogMessage(e.Message)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()
	signal.Stop(sigCh)

	if cfg.ExportPath != "" {
		count, err := exporter.Snapshot(cfg.ExportPath)
		if err != nil {
			log.Printf("export: snapshot failed: %v", err)
		} else {
			log.Printf("export: wrote %d entries to %s", count, cfg.ExportPath)
		}
	}

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger(debug bool) func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if !debug {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := config.DebugLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			log.SetOutput(f)
			return func() { _ = f.Close() }
		}
	}
	log.SetOutput(os.Stderr)
	return func() {}
}

func printStartupBanner(cfg config.Config, hasSources bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╦╗╦═╗╦╔═╗╔═╗╔═╗
     ║ ╠╦╝║╠═╣║ ╦║╣
     ╩ ╩╚═╩╩ ╩╚═╝╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "", logo, "    "+ver, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Gateway"), "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}

	if cfg.OTLPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Logs      %s", check, cyan.Render(cfg.OTLPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Logs      %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))), "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  Resident Store %s", check, dim.Render(fmt.Sprintf("%d entries", cfg.StoreCapacity))))
	if cfg.ExportPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Export Target  %s", check, dim.Render(shortenPath(cfg.ExportPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Export Target  %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"), "")
	if hasSources {
		lines = append(lines, fmt.Sprintf("    %s  Ingestion      %s", check, dim.Render("active")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Ingestion      %s", dot, dim.Render("no sources")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
