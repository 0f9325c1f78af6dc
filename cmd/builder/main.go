package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/analytics/store"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/events"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/internal/workpool"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/parliament-speech-analytics/pkg/resilience"
)

const storeTimeout = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	corpusPath := flag.String("corpus", "", "JSON lines corpus, overrides corpus.path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *corpusPath != "" {
		cfg.Corpus.Source = "file"
		cfg.Corpus.Path = *corpusPath
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting snapshot build",
		"source", cfg.Corpus.Source,
		"data_dir", cfg.Pipeline.DataDir,
		"dimensions", cfg.Pipeline.Dimensions,
		"clusters", cfg.Pipeline.Clusters,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg)
	if cfg.Metrics.PushGateway != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if perr := metrics.Push(pushCtx, cfg.Metrics.PushGateway, "snapshot-builder", prometheus.DefaultGatherer); perr != nil {
			slog.Warn("metrics push failed", "error", perr)
		}
		cancel()
	}
	if err != nil {
		slog.Error("snapshot build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	pool, err := workpool.New(cfg.Pipeline.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var db *postgres.Client
	if cfg.Postgres.Enabled() {
		err := resilience.Retry(ctx, "connect-postgres", resilience.RetryConfig{}, func() error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		slog.Info("artifact store connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	src, err := source(cfg, db)
	if err != nil {
		return err
	}

	dirs := pipeline.NewDirStore(cfg.Pipeline.DataDir, cfg.Pipeline.KeepGenerations)
	gen, err := dirs.NextGeneration()
	if err != nil {
		return err
	}
	snap, err := pipeline.NewBuilder(pipeline.ParamsFrom(cfg), pool, m).Build(ctx, gen, src)
	if err != nil {
		return err
	}
	dir, err := dirs.Write(ctx, snap)
	if err != nil {
		return err
	}
	pipeline.Observe(m, snap)

	if db != nil {
		artifacts := store.New(db)
		err := resilience.WithTimeout(ctx, storeTimeout, "save-artifacts", func(ctx context.Context) error {
			return resilience.Retry(ctx, "save-artifacts", resilience.RetryConfig{}, func() error {
				return artifacts.Save(ctx, snap.Artifacts(dir))
			})
		})
		if err != nil {
			return err
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SnapshotPublished)
		defer producer.Close()
		publisher := events.NewPublisher(producer, resilience.RetryConfig{MaxAttempts: 5})
		if err := publisher.Publish(ctx, events.NewSnapshotPublished(snap, dir)); err != nil {
			return err
		}
	}

	info := snap.Info()
	slog.Info("snapshot build complete",
		"generation", info.Generation,
		"dir", dir,
		"documents", info.Documents,
		"terms", info.Terms,
		"skipped", info.Corpus.SkippedTotal(),
		"pairs", info.Pairs,
	)
	return nil
}

func source(cfg *config.Config, db *postgres.Client) (corpus.Source, error) {
	if cfg.Corpus.Source == "postgres" {
		if db == nil {
			return nil, fmt.Errorf("corpus.source is postgres but no postgres host is configured")
		}
		return corpus.NewPostgresSource(db.DB, cfg.Corpus.Table)
	}
	return corpus.NewFileSource(cfg.Corpus.Path), nil
}
