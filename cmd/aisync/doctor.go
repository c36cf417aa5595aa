package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-session-sync/internal/config"
	"github.com/Zuo-Peng/ai-session-sync/internal/scan"
	"github.com/Zuo-Peng/ai-session-sync/internal/store"
	"github.com/Zuo-Peng/ai-session-sync/internal/syncer"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify watch root, DB, FTS5, collector, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			fmt.Println("=== Watch Root ===")
			checkDir(cfg.WatchRoot)

			fmt.Println("\n=== File Scan ===")
			files, err := scan.Walk(cfg.WatchRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				fmt.Printf("  Session JSONL files: %d\n", len(files))
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.Storage.DBPath)
			if !cfg.Storage.Enabled {
				fmt.Println("  Status: DISABLED")
			} else if _, err := os.Stat(cfg.Storage.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'aisync run' first)")
			} else if err := checkDB(cfg); err != nil {
				return err
			}

			fmt.Println("\n=== Collector ===")
			if !cfg.API.Enabled {
				fmt.Println("  Status: DISABLED")
			} else {
				client := syncer.NewClient(cfg.API.URL, cfg.API.Key, 10*time.Second)
				if err := client.Health(context.Background()); err != nil {
					fmt.Printf("  %s: UNREACHABLE (%v)\n", cfg.API.URL, err)
				} else {
					fmt.Printf("  %s: OK\n", cfg.API.URL)
				}
			}
			return nil
		},
	}
}

func checkDB(cfg *config.Config) error {
	st, err := store.OpenReadOnly(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	total, synced, pending, err := st.SyncStats()
	if err != nil {
		return fmt.Errorf("sync stats: %w", err)
	}
	cursors, err := st.CursorCount()
	if err != nil {
		return fmt.Errorf("count cursors: %w", err)
	}

	fmt.Printf("  Events:  %d (%d synced, %d pending)\n", total, synced, pending)
	fmt.Printf("  Cursors: %d file(s) tracked\n", cursors)

	fmt.Println("\n=== FTS5 ===")
	ftsCount, err := st.SearchIndexCount()
	if err != nil {
		fmt.Printf("  FTS5 error: %v\n", err)
		return nil
	}
	var withMessage int
	if err := st.Raw().QueryRow(
		`SELECT COUNT(*) FROM events WHERE event_message IS NOT NULL`).Scan(&withMessage); err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	fmt.Printf("  FTS5 entries: %d\n", ftsCount)
	if ftsCount == withMessage {
		fmt.Println("  Status: OK (synced)")
	} else {
		fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", withMessage, ftsCount)
	}

	if info, err := os.Stat(cfg.Storage.DBPath); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		fmt.Printf("\n=== DB Size: %.1f MB ===\n", sizeMB)
	}
	return nil
}

func checkDir(path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s (NOT FOUND)\n", path)
	} else if !info.IsDir() {
		fmt.Printf("  %s (NOT A DIRECTORY)\n", path)
	} else {
		fmt.Printf("  %s (OK)\n", path)
	}
}
