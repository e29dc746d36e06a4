package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/nepal-guide-hub/discovery/internal/catalog"
	"github.com/nepal-guide-hub/discovery/internal/changes"
	"github.com/nepal-guide-hub/discovery/internal/searcher/cache"
	"github.com/nepal-guide-hub/discovery/internal/searcher/executor"
	"github.com/nepal-guide-hub/discovery/internal/storage/driver"
	"github.com/nepal-guide-hub/discovery/pkg/config"
	"github.com/nepal-guide-hub/discovery/pkg/kafka"
	"github.com/nepal-guide-hub/discovery/pkg/logger"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "searchctl",
		Usage: "query the discovery catalog and manage the search cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug/info/warn/error)",
				Value: "warn",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logger.Setup(cmd.String("log-level"), "text")
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "run a search and print the ranked results as JSON",
				Flags:  searchFlags(),
				Action: searchAction,
			},
			{
				Name:   "explain",
				Usage:  "run a search and print its plan, predicates and score breakdowns",
				Flags:  searchFlags(),
				Action: explainAction,
			},
			{
				Name:  "invalidate",
				Usage: "publish a catalog change so every searcher flushes its cache",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "kind",
						Usage: "changed entity kind (packages/guides/agencies)",
					},
					&cli.Int64Flag{
						Name:  "id",
						Usage: "changed entity id",
					},
					&cli.StringFlag{
						Name:  "reason",
						Usage: "free-form reason recorded in searcher logs",
						Value: "manual",
					},
				},
				Action: invalidateAction,
			},
		},
	}
}

func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "fixtures",
			Usage: "search a YAML catalog snapshot instead of the configured storage",
		},
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "free-text query",
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "kind selector (all/packages/guides/agencies)",
			Value: string(catalog.SelectAll),
		},
		&cli.StringFlag{
			Name:  "sort",
			Usage: "sort key, e.g. price_low or rating",
		},
		&cli.StringSliceFlag{
			Name:  "filter",
			Usage: "filter as name=value, repeatable",
		},
	}
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	exec, closeFn, err := openExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	resp, err := exec.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printJSON(cmd.Root().Writer, resp)
}

func explainAction(ctx context.Context, cmd *cli.Command) error {
	exec, closeFn, err := openExecutor(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	req, err := requestFromFlags(cmd)
	if err != nil {
		return err
	}
	explained, err := exec.Explain(ctx, req)
	if err != nil {
		return fmt.Errorf("explain failed: %w", err)
	}
	return printJSON(cmd.Root().Writer, explained)
}

func invalidateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.Root().String("config"))
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled {
		return fmt.Errorf("kafka is disabled; nothing to publish to")
	}

	event := cache.InvalidationEvent{
		Kind:   cmd.String("kind"),
		ID:     cmd.Int64("id"),
		Reason: cmd.String("reason"),
	}
	if err := changes.Validate(&event); err != nil {
		return err
	}
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer producer.Close()
	if err := changes.NewPublisher(producer).Publish(ctx, event); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "invalidation published to %s\n", cfg.Kafka.Topics.CacheInvalidate)
	return nil
}

// openExecutor loads config, applies the --fixtures override and opens the
// repository behind a fresh executor.
func openExecutor(cmd *cli.Command) (*executor.Executor, func(), error) {
	cfg, err := loadSearchConfig(cmd.Root().String("config"), cmd.String("fixtures"))
	if err != nil {
		return nil, nil, err
	}
	backend, err := driver.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog storage: %w", err)
	}
	return executor.New(backend.Repository, cfg.Search), func() { backend.Close() }, nil
}

func loadSearchConfig(path, fixtures string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if fixtures != "" {
		cfg.Storage = config.StorageConfig{Driver: config.DriverMemory, Fixtures: fixtures}
	}
	return cfg, nil
}

func requestFromFlags(cmd *cli.Command) (executor.Request, error) {
	req := executor.Request{
		Query: cmd.String("query"),
		Kind:  catalog.ParseSelector(cmd.String("kind")),
		Sort:  cmd.String("sort"),
	}
	raw := cmd.StringSlice("filter")
	if len(raw) == 0 {
		return req, nil
	}
	req.Filters = make(map[string]string, len(raw))
	for _, f := range raw {
		name, value, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return req, fmt.Errorf("filter %q: want name=value", f)
		}
		req.Filters[name] = value
	}
	return req, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
