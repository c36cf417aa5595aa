package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-sync/internal/config"
	"github.com/Zuo-Peng/ai-session-sync/internal/gitinfo"
	"github.com/Zuo-Peng/ai-session-sync/internal/pipeline"
	"github.com/Zuo-Peng/ai-session-sync/internal/store"
	"github.com/Zuo-Peng/ai-session-sync/internal/syncer"
	"github.com/Zuo-Peng/ai-session-sync/internal/watch"
)

func runCmd() *cobra.Command {
	var skipBacklog bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch session logs, record them locally, and sync to the collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runAgent(cfg, skipBacklog)
		},
	}
	cmd.Flags().BoolVar(&skipBacklog, "skip-backlog", false,
		"fast-forward cursors to the end of existing files instead of ingesting them")
	return cmd
}

func runAgent(cfg *config.Config, skipBacklog bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage failure degrades to store-less forwarding rather than
	// refusing to start: losing dedup beats losing the live session.
	st := openStore(cfg)
	if st != nil {
		defer st.Close()
	}

	var client *syncer.Client
	if cfg.API.Enabled {
		client = syncer.NewClient(cfg.API.URL, cfg.API.Key, cfg.Sync.RequestTimeout.Duration)
		if err := client.Health(ctx); err != nil {
			log.Printf("collector unreachable, will keep retrying: %v", err)
		} else {
			log.Printf("collector reachable at %s", cfg.API.URL)
		}
	}
	if st == nil && client == nil {
		return fmt.Errorf("neither storage nor API is available, nothing to do")
	}

	p := &pipeline.Pipeline{
		Root:     cfg.WatchRoot,
		Git:      gitinfo.NewResolver(),
		Filter:   cfg.DebugFilterProject,
		Classify: defaultClassifier,
	}
	if st != nil {
		p.Store = st
	} else {
		p.Fallback = client
	}

	if skipBacklog && st != nil {
		n, err := st.FastForwardAll(cfg.WatchRoot, cfg.DebugFilterProject)
		if err != nil {
			return fmt.Errorf("skip backlog: %w", err)
		}
		log.Printf("fast-forwarded %d file cursor(s)", n)
	}
	if err := p.Sweep(ctx); err != nil {
		log.Printf("startup sweep incomplete: %v", err)
	}

	w, err := watch.New(cfg.WatchRoot, func(ctx context.Context, path string) {
		if err := p.ProcessFile(ctx, path); err != nil {
			log.Printf("error processing %s: %v", path, err)
		}
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logStopped("watcher", w.Run(ctx))
	}()

	if st != nil && client != nil {
		worker := syncer.NewWorker(st, client, defaultClassifier, syncer.Tuning{
			BatchSize:      cfg.Sync.BatchSize,
			IdleInterval:   cfg.Sync.IdleInterval.Duration,
			Throttle:       cfg.Sync.Throttle.Duration,
			BackoffFloor:   cfg.Sync.BackoffFloor.Duration,
			BackoffCeiling: cfg.Sync.BackoffCeiling.Duration,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			logStopped("sync worker", worker.Run(ctx))
		}()
	}

	<-ctx.Done()
	log.Printf("shutting down")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Sync.ShutdownTimeout.Duration):
		log.Printf("shutdown timed out, exiting anyway")
	}
	return nil
}

// logStopped surfaces a background loop dying for any reason other
// than the shutdown cancel, like the watcher losing its event channel.
func logStopped(name string, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("%s stopped: %v", name, err)
	}
}

func openStore(cfg *config.Config) *store.Store {
	if !cfg.Storage.Enabled {
		return nil
	}
	st, err := store.Open(cfg.Storage.DBPath, cfg.UserName)
	if err != nil {
		log.Printf("storage unavailable, running degraded: %v", err)
		return nil
	}
	return st
}
