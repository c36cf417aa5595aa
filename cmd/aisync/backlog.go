package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-sync/internal/config"
	"github.com/Zuo-Peng/ai-session-sync/internal/store"
)

func backlogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip-backlog",
		Short: "Mark all existing session lines as seen without ingesting them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Storage.Enabled {
				return fmt.Errorf("storage is disabled, nothing to fast-forward")
			}

			st, err := store.Open(cfg.Storage.DBPath, cfg.UserName)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			n, err := st.FastForwardAll(cfg.WatchRoot, cfg.DebugFilterProject)
			if err != nil {
				return fmt.Errorf("fast-forward: %w", err)
			}
			fmt.Printf("Fast-forwarded %d file cursor(s). New lines will be ingested from here on.\n", n)
			return nil
		},
	}
}
