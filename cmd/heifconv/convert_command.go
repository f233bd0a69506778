package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"heifconv/internal/artifacts"
	"heifconv/internal/codec"
	"heifconv/internal/config"
	"heifconv/internal/converter"
	"heifconv/internal/engine"
	"heifconv/internal/logging"
	"heifconv/internal/notifications"
	"heifconv/internal/queue"
	"heifconv/internal/selection"
)

func newConvertCommand(cmdCtx *commandContext) *cobra.Command {
	var outputDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Convert HEIC images to PNG",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if dir := strings.TrimSpace(outputDir); dir != "" {
				expanded, err := expandOutputDir(dir)
				if err != nil {
					return err
				}
				cfg.Paths.OutputDir = expanded
				if err := cfg.EnsureDirectories(); err != nil {
					return err
				}
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "heifconv.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another heifconv run is already active")
			}
			defer func() { _ = lock.Unlock() }()

			candidates, skipped, err := selection.Select(args)
			if err != nil {
				return err
			}
			if skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d file(s) without a .heic/.heif extension\n", skipped)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := queue.Open()
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			decoder, err := codec.New(cfg.Codec.Binary, cfg.Codec.Quality)
			if err != nil {
				return fmt.Errorf("configure codec: %w", err)
			}
			eng := engine.New(decoder, logger, time.Duration(cfg.Codec.ProbeTimeout)*time.Second)
			results := artifacts.NewStore()
			notifier := notifications.NewService(cfg)

			conv := converter.New(cfg, store, results, eng, notifier, logger)
			defer conv.Close()
			if err := conv.Start(ctx); err != nil {
				return err
			}

			items := make([]*queue.Item, 0, len(candidates))
			for _, candidate := range candidates {
				item, err := store.NewItem(ctx, candidate.Path, candidate.Name, candidate.ByteSize, candidate.MimeHint)
				if err != nil {
					return fmt.Errorf("register %s: %w", candidate.Name, err)
				}
				logger.Info("queued for conversion",
					logging.String(logging.FieldItemID, item.ID),
					logging.String("title", selection.DisplayTitle(item.DisplayName)),
				)
				items = append(items, item)
			}

			if err := conv.Convert(ctx, items); err != nil {
				return err
			}
			if err := conv.Wait(ctx); err != nil {
				return err
			}

			exported, err := conv.DownloadAll()
			if err != nil {
				return fmt.Errorf("export results: %w", err)
			}

			summary, err := buildSummary(ctx, store, items, exported)
			if err != nil {
				return err
			}
			if jsonOutput {
				if err := writeJSON(cmd, summary); err != nil {
					return err
				}
			} else {
				printSummary(cmd, summary)
			}

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d conversions failed", summary.Failed, len(items))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for converted PNG files (overrides config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit a machine-readable batch summary")
	return cmd
}

func expandOutputDir(dir string) (string, error) {
	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output directory: %w", err)
	}
	return expanded, nil
}

func buildSummary(ctx context.Context, store *queue.Store, items []*queue.Item, exported []string) (batchSummary, error) {
	summary := batchSummary{Exported: exported}
	for _, item := range items {
		current, err := store.GetByID(ctx, item.ID)
		if err != nil {
			return summary, fmt.Errorf("load item %s: %w", item.ID, err)
		}
		if current == nil {
			continue
		}
		entry := itemSummary{
			ID:       current.ID,
			Source:   current.DisplayName,
			Status:   string(current.Status),
			Attempt:  current.Attempt,
			ByteSize: current.ByteSize,
			Progress: current.ProgressPercent,
		}
		switch current.Status {
		case queue.StatusCompleted:
			entry.Result = selection.MapName(current.DisplayName)
			summary.Completed++
		case queue.StatusFailed:
			entry.FailureReason = current.FailureReason
			summary.Failed++
		}
		summary.Items = append(summary.Items, entry)
	}
	return summary, nil
}

func printSummary(cmd *cobra.Command, summary batchSummary) {
	rows := make([][]string, 0, len(summary.Items))
	for _, item := range summary.Items {
		detail := item.Result
		if item.FailureReason != "" {
			detail = item.FailureReason
		}
		rows = append(rows, []string{item.Source, item.Status, detail})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Source", "Status", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "Wrote %d file(s)\n", len(summary.Exported))
}
