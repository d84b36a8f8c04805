package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/pressworks/disseminator/internal/config"
	"github.com/pressworks/disseminator/internal/journal"
	"github.com/pressworks/disseminator/internal/packaging"
	"github.com/pressworks/disseminator/internal/pipeline"
	"github.com/pressworks/disseminator/internal/queue"
	"github.com/pressworks/disseminator/internal/registry"
	"github.com/pressworks/disseminator/internal/secrets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "disseminator: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disseminator",
		Short: "Deliver works from the metadata registry to distribution platforms",
		Long: `disseminator fetches a work's metadata and content files from the registry,
validates the work against a platform's requirements, derives the platform's
metadata format, and transmits the resulting package. On success the assigned
location is recorded back at the registry.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newDisseminateCmd(),
		newBulkCmd(),
		newEnqueueCmd(),
		newPlatformsCmd(),
	)
	return cmd
}

// runtime bundles everything a command needs to run attempts.
type runtime struct {
	cfg          *config.Config
	store        *secrets.Store
	orchestrator *pipeline.Orchestrator
	journal      *journal.PostgresJournal
	closers      []func()
}

func (r *runtime) close() {
	for _, fn := range r.closers {
		fn()
	}
}

func buildRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store := secrets.NewStore()

	rt := &runtime{cfg: cfg, store: store}
	if cfg.DatabaseURL != "" {
		pool, err := journal.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect journal: %w", err)
		}
		if err := journal.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		rt.journal = journal.New(pool)
		rt.closers = append(rt.closers, pool.Close)
	}

	reg := registry.NewGraphQL(cfg.RegistryURL, cfg.RegistryTimeout)
	fetcher := packaging.NewFetcher(cfg.FetchTimeout, cfg.VerifyChecksums, cfg.VerifyPDF)
	builder := packaging.NewBuilder(fetcher, nil)

	var jrnl pipeline.Journal
	if rt.journal != nil {
		jrnl = rt.journal
	}
	rt.orchestrator = pipeline.NewOrchestrator(reg, builder, jrnl, nil)
	return rt, nil
}

func newDisseminateCmd() *cobra.Command {
	var workID string
	var platformName string
	cmd := &cobra.Command{
		Use:   "disseminate",
		Short: "Run one dissemination attempt for a single work",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			platform, err := pipeline.ParsePlatform(platformName)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			adapter, err := pipeline.BuildAdapter(rt.cfg, rt.store, platform)
			if err != nil {
				return fmt.Errorf("configure %s: %w", platform, err)
			}

			outcome, err := rt.orchestrator.Run(ctx, adapter, workID)
			if err != nil {
				return fmt.Errorf("disseminate: %w", err)
			}
			if outcome.Status == pipeline.StatusSuccess {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(outcome.Location)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.Diagnostic())
			return nil
		},
	}
	cmd.Flags().StringVar(&workID, "work", "", "Work identifier in the registry")
	cmd.Flags().StringVar(&platformName, "platform", "", "Target platform")
	_ = cmd.MarkFlagRequired("work")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func newBulkCmd() *cobra.Command {
	var platformName string
	var workIDs []string
	var excludeDone bool
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Run dissemination attempts for many works concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			platform, err := pipeline.ParsePlatform(platformName)
			if err != nil {
				return err
			}
			rt, err := buildRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close()
			adapter, err := pipeline.BuildAdapter(rt.cfg, rt.store, platform)
			if err != nil {
				return fmt.Errorf("configure %s: %w", platform, err)
			}

			ids := workIDs
			if excludeDone {
				if rt.journal == nil {
					return fmt.Errorf("--exclude-done needs DISSEM_DATABASE_URL set")
				}
				done, err := rt.journal.ListTerminal(ctx, platform,
					pipeline.StatusSuccess, pipeline.StatusSkippedDuplicate)
				if err != nil {
					return err
				}
				ids = excludeIDs(ids, done)
			}

			runner := pipeline.NewBulkRunner(rt.orchestrator, rt.cfg.Concurrency)
			result := runner.Run(ctx, adapter, ids)

			fmt.Fprintf(cmd.OutOrStdout(), "attempted %d of %d works, %d failed\n",
				len(result.Outcomes), len(ids), result.Failed())
			if result.Aborted {
				fmt.Fprintln(cmd.OutOrStdout(), "batch aborted early")
			}
			if result.Failed() > 0 || result.Aborted {
				return fmt.Errorf("bulk run incomplete")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", "", "Target platform")
	cmd.Flags().StringSliceVar(&workIDs, "works", nil, "Comma-separated work identifiers")
	cmd.Flags().BoolVar(&excludeDone, "exclude-done", false, "Skip works whose latest journalled attempt already succeeded")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("works")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var platformName string
	var workIDs []string
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue dissemination attempts for the worker instead of running them inline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := pipeline.ParsePlatform(platformName); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()

			for _, workID := range workIDs {
				payload := queue.DisseminatePayload{WorkID: workID, Platform: platformName}
				if err := queue.EnqueueDisseminate(ctx, client, payload); err != nil {
					return fmt.Errorf("enqueue work %s: %w", workID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d works for %s\n", len(workIDs), platformName)
			return nil
		},
	}
	cmd.Flags().StringVar(&platformName, "platform", "", "Target platform")
	cmd.Flags().StringSliceVar(&workIDs, "works", nil, "Comma-separated work identifiers")
	_ = cmd.MarkFlagRequired("platform")
	_ = cmd.MarkFlagRequired("works")
	return cmd
}

func newPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the known delivery platforms",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(pipeline.AllPlatforms()))
			for _, p := range pipeline.AllPlatforms() {
				names = append(names, string(p))
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return nil
		},
	}
}

func excludeIDs(ids, done []string) []string {
	skip := make(map[string]struct{}, len(done))
	for _, id := range done {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
