package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
	"github.com/tarisrizki/provisioning-telkom/internal/columns"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/ingestion"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/models"
)

type ingestFlags struct {
	force bool
	heavy bool
}

func newIngestCmd() *cobra.Command {
	var flags ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest every .csv file under the given files or folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runIngest(ctx, cmd, args, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.force, "force", false, "ingest files even when an identical upload already completed")
	cmd.Flags().BoolVar(&flags.heavy, "heavy", false, "use the larger upload size limit")
	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, flags ingestFlags) error {
	startTime := time.Now()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	aliases := columns.DefaultAliasTable()
	if a.cfg.ColumnAliasesPath != "" {
		if aliases, err = columns.LoadAliasTable(a.cfg.ColumnAliasesPath); err != nil {
			return err
		}
	}

	var files []ingestion.FileInfo
	for _, p := range paths {
		found, err := ingestion.ScanForFiles(p)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .csv files found under %v", paths)
	}

	m := metrics.Noop{}
	persister := ingestion.NewPersister(a.store, aliases, a.cfg.DBBatchSize, a.logger, m)
	service := ingestion.NewIngestionService(a.store, persister, ingestion.NewAsyncWorker(a.logger), a.cache, events.NewBus(), ingestion.Limits{
		MaxLightBytes:        a.cfg.MaxLightUploadBytes,
		MaxHeavyBytes:        a.cfg.MaxHeavyUploadBytes,
		WorkerThresholdBytes: a.cfg.WorkerThresholdBytes,
		ParseBatchSize:       a.cfg.ParseBatchSize,
	}, a.logger, m)

	out := cmd.OutOrStdout()
	var failed int
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := ingestFile(ctx, service, f, flags); err != nil {
			var verr *models.ValidationError
			if errors.As(err, &verr) && verr.Kind == models.DuplicateFile {
				fmt.Fprintf(out, "SKIP  %s: %s\n", f.Path, verr.Message)
				continue
			}
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", f.Path, err)
			continue
		}
		fmt.Fprintf(out, "OK    %s\n", f.Path)
	}

	fmt.Fprintf(out, "%d file(s), %d failed, took %s\n", len(files), failed, time.Since(startTime).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func ingestFile(ctx context.Context, service *ingestion.IngestionService, f ingestion.FileInfo, flags ingestFlags) error {
	file, err := os.Open(f.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer file.Close()

	progress := make(chan models.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if p.TotalChunks > 0 {
				fmt.Fprintf(os.Stderr, "\r%s: chunk %d/%d, %d rows", f.Path, p.CurrentChunk, p.TotalChunks, p.RowsProcessed)
			}
		}
		fmt.Fprintln(os.Stderr)
	}()

	result, err := service.Execute(ctx, ingestion.Upload{
		Name:   f.Path,
		Reader: file,
		Size:   f.Size,
		Heavy:  flags.heavy,
	}, ingestion.Options{Force: flags.force, Progress: progress})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	for _, w := range result.Persist.Warnings {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
	}
	if !result.Cached {
		fmt.Fprintf(os.Stderr, "  %s was not cached locally\n", f.Path)
	} else if result.CacheTier != cache.TierNone {
		fmt.Fprintf(os.Stderr, "  cached (%s)\n", result.CacheTier)
	}
	return nil
}
