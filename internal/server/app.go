// Package server wires configuration, storage backends and the document
// store together and runs the gRPC and ops listeners until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/blobstore"
	"github.com/dmitrijs2005/docvault/internal/server/config"
	"github.com/dmitrijs2005/docvault/internal/server/ops"
	"github.com/dmitrijs2005/docvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docvault/internal/server/services"

	gs "github.com/dmitrijs2005/docvault/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	store   *services.DocumentStore
	closers []io.Closer
}

// logOutput is where the application logger writes.
var logOutput io.Writer = os.Stdout

func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	logger := logging.New(logOutput, c.LogLevel, c.LogFormat)
	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	rm, err := repomanager.New(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	app.db, err = repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, app.db)

	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return nil, err
	}

	blobs, err := app.openBlobStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	key, err := c.MasterKey()
	if err != nil {
		return nil, err
	}
	box, err := cryptox.NewBox(key)
	common.WipeByteArray(key)
	if err != nil {
		return nil, err
	}

	app.store = services.NewDocumentStore(app.db, rm, blobs, box,
		services.WithLogger(logger),
		services.WithVersionCache(c.VersionCacheSize),
	)

	logger.Info(ctx, "App initialized",
		"db_driver", c.DatabaseDriver, "blob_backend", c.BlobBackend, "version_cache", c.VersionCacheSize)
	return app, nil
}

func (app *App) openBlobStore(ctx context.Context) (blobstore.Store, error) {
	c := app.config
	switch c.BlobBackend {
	case blobstore.BackendS3:
		s, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    c.S3Bucket,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case blobstore.BackendBolt:
		s, err := blobstore.OpenBoltStore(c.BoltPath)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, s)
		return s, nil
	case blobstore.BackendMemory:
		app.logger.Warn(ctx, "Using in-memory blob store, content is lost on exit")
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", c.BlobBackend)
	}
}

// Close releases the database and blob store handles.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}

// Run serves gRPC and ops HTTP until ctx is done or one listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store, nil, app.config.SecretKey)
	opsServer := ops.NewServer(app.config.EndpointAddrOps, ops.NewRouter(app.db), app.logger, app.config.ShutdownTimeout)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				app.logger.Error(ctx, "Listener failed", "listener", name, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", name, err)
				}
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	run("grpc", grpcServer.Run)
	if app.config.EndpointAddrOps != "" {
		run("ops", opsServer.Run)
	}

	wg.Wait()
	app.logger.Info(context.WithoutCancel(ctx), "App stopped")
	return firstErr
}
