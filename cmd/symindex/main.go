// Command symindex builds, inspects and queries symbol index generations
// offline.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program. Fields left nil are built from configuration
// in Run; tests preset them.
type Main struct {
	Blobs blobstore.Store

	db       *postgres.Client
	producer *kafka.Producer
}

func NewMain() *Main {
	return &Main{}
}

// Close releases connections opened by Run.
func (m *Main) Close() error {
	var firstErr error
	if m.producer != nil {
		if err := m.producer.Close(); err != nil {
			firstErr = err
		}
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run parses args and executes the selected command.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("symindex"),
		kong.Description("Build and query sharded symbol indexes."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'symindex --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Logging.Level
	if cli.Verbose {
		level = "debug"
	}
	slog.SetDefault(logger.New(stderr, level, cfg.Logging.Format))
	deps.Config = cfg

	if m.Blobs == nil {
		if m.Blobs, err = storage.Open(ctx, cfg.Storage); err != nil {
			return err
		}
	}
	deps.Blobs = m.Blobs
	deps.Registry = prometheus.NewRegistry()
	deps.Metrics = metrics.New(deps.Registry)
	defer m.Close()

	if strings.HasPrefix(kongCtx.Command(), "build") {
		if cfg.Postgres.Enabled() {
			m.db, err = postgres.New(ctx, cfg.Postgres)
			if err != nil {
				fmt.Fprintln(stderr, "Hint: unset postgres.host to build from a catalog file only")
				return err
			}
			src := catalog.NewPostgresSource(m.db)
			if err := src.EnsureSchema(ctx); err != nil {
				return err
			}
			deps.Catalog = src
		}
		if len(cfg.Kafka.Brokers) > 0 && !cli.Build.NoPublish {
			m.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
			deps.Publisher = m.producer
		}
	}

	return kongCtx.Run(deps)
}
