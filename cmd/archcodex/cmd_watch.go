package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ArchCodexOrg/archcodex-sub000/internal/config"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/logger"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/metrics"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/project"
	"github.com/ArchCodexOrg/archcodex-sub000/internal/watcher"
)

var (
	watchMetricsAddr string

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Re-validate files as they change",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
)

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// session owns the analyzer for a watch run and swaps it when the registry
// or config changes.
type session struct {
	cfg      *config.Config
	analyzer *project.Analyzer
	cmd      *cobra.Command
}

func (s *session) HandleBatch(ctx context.Context, b watcher.Batch) error {
	if b.ConfigChanged {
		if err := s.reload(); err != nil {
			return err
		}
		return s.run(ctx, project.Request{})
	}
	if len(b.Removed) > 0 {
		return s.run(ctx, project.Request{})
	}
	var files []string
	for _, f := range b.Changed {
		if s.analyzer.Accepts(f) {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil
	}
	return s.run(ctx, project.Request{Files: files})
}

func (s *session) reload() error {
	loaded, err := config.Load(s.cfg.Root)
	if err != nil {
		return err
	}
	a, err := project.Open(loaded, nil)
	if err != nil {
		return err
	}
	if s.analyzer != nil {
		s.analyzer.Close()
	}
	logger.Info("configuration reloaded", "root", loaded.Root)
	s.cfg, s.analyzer = loaded, a
	return nil
}

func (s *session) run(ctx context.Context, req project.Request) error {
	report, err := s.analyzer.Run(ctx, req)
	if err != nil {
		return err
	}
	printReport(s.cmd.OutOrStdout(), report)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &session{cfg: cfg, cmd: cmd}
	if err := s.reload(); err != nil {
		return err
	}
	defer func() { s.analyzer.Close() }()

	if err := s.run(ctx, project.Request{}); err != nil {
		return err
	}

	w, err := watcher.New(cfg.Watcher, cfg.Root, config.Dir, s)
	if err != nil {
		return err
	}

	addr := watchMetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}

	g, gCtx := errgroup.WithContext(ctx)
	if addr != "" {
		g.Go(func() error { return metrics.Serve(gCtx, addr) })
	}
	g.Go(func() error { return w.Run(gCtx) })
	return g.Wait()
}
