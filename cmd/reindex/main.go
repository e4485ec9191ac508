// Command reindex rebuilds the search index from the resource store. Run it
// after restoring the store from backup or when the index is suspected stale.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"catalog/application/ports"
	"catalog/infrastructure/config"
	"catalog/infrastructure/persistence/postgres"
	"catalog/infrastructure/search/bleve"
	"catalog/pkg/observability"
)

const pageSize = 1000

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "reindex:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to catalogd.yaml; defaults apply when omitted")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline for the rebuild")
	flag.Parse()

	bootLogger, _ := zap.NewProduction()
	cfg, err := config.Load(*configPath, bootLogger)
	if err != nil {
		return err
	}
	_ = bootLogger.Sync()

	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	resources := postgres.NewResourceRepository(db, logger.Named("postgres"))

	index, err := bleve.NewIndex(cfg.Search.IndexPath, logger.Named("bleve"))
	if err != nil {
		return err
	}
	defer index.Close()

	start := time.Now()
	var docs []ports.Document
	for page := 1; ; page++ {
		batch, err := resources.Page(ctx, pageSize, page)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			docs = append(docs, ports.DocumentFromResource(r))
		}
		if len(batch) < pageSize {
			break
		}
	}

	if err := index.ReindexAll(ctx, docs); err != nil {
		return err
	}

	logger.Info("search index rebuilt",
		zap.Int("documents", len(docs)),
		zap.Duration("took", time.Since(start)),
	)
	fmt.Printf("indexed %d documents in %s\n", len(docs), time.Since(start).Round(time.Millisecond))
	return nil
}
