// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/archive"
	"github.com/JakeFAU/registry-crawler/internal/config"
	"github.com/JakeFAU/registry-crawler/internal/logging"
	"github.com/JakeFAU/registry-crawler/internal/metrics"
	"github.com/JakeFAU/registry-crawler/internal/monitor"
	"github.com/JakeFAU/registry-crawler/internal/proxy"
	"github.com/JakeFAU/registry-crawler/internal/publish"
	"github.com/JakeFAU/registry-crawler/internal/registry"
	"github.com/JakeFAU/registry-crawler/internal/storage/noop"
	"github.com/JakeFAU/registry-crawler/internal/storage/postgres"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and handed to the commands that need it.
type App struct {
	cfg     config.Config
	log     *zap.Logger
	records registry.RecordStore
	pub     registry.Publisher
	arch    registry.BlobStore
	proxies *proxy.Pool
	mon     *monitor.Monitor
}

// Config returns the validated configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.log }

// Records exposes the configured record store.
func (a *App) Records() registry.RecordStore { return a.records }

// Publisher exposes the configured downstream publisher.
func (a *App) Publisher() registry.Publisher { return a.pub }

// Archive exposes the configured raw page archive.
func (a *App) Archive() registry.BlobStore { return a.arch }

// Proxies returns the proxy pool; it is empty when no proxies are configured.
func (a *App) Proxies() *proxy.Pool { return a.proxies }

// Monitor returns the process-wide request monitor.
func (a *App) Monitor() *monitor.Monitor { return a.mon }

// New builds the service graph from a validated config. It fails fast when
// a critical provider cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")
	metrics.Init()

	a := &App{
		cfg: cfg,
		log: l,
		mon: monitor.New(),
	}

	switch cfg.Storage.Provider {
	case "postgres":
		l.Info("Using Postgres record store", zap.String("table", cfg.Storage.Table))
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:      cfg.Storage.DSN,
			Table:    cfg.Storage.Table,
			MaxConns: cfg.Storage.MaxConns,
			MinConns: cfg.Storage.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize record store: %w", err)
		}
		a.records = store
	case "noop":
		l.Info("Using no-op record store; accepted records are not persisted")
		a.records = noop.RecordStore{}
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}

	switch cfg.Publisher.Provider {
	case "pubsub":
		l.Info("Connecting to GCP Pub/Sub", zap.String("topic", cfg.Publisher.TopicID))
		pub, err := publish.NewPubSub(ctx, publish.PubSubConfig{
			ProjectID: cfg.Publisher.ProjectID,
			TopicID:   cfg.Publisher.TopicID,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		a.pub = pub
	case "noop":
		l.Info("Using no-op publisher; no messages will be sent")
		a.pub = publish.Noop{}
	default:
		a.Close()
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}

	switch cfg.Archive.Provider {
	case "gcs":
		l.Info("Using GCS page archive", zap.String("bucket", cfg.Archive.Bucket))
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		store, err := archive.NewGCSStore(client, archive.GCSConfig{Bucket: cfg.Archive.Bucket})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize page archive: %w", err)
		}
		a.arch = store
	case "local":
		l.Info("Using local page archive", zap.String("base_dir", cfg.Archive.BaseDir))
		store, err := archive.NewLocalStore(archive.LocalConfig{BaseDir: cfg.Archive.BaseDir})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize page archive: %w", err)
		}
		a.arch = store
	case "noop":
		a.arch = archive.NoopStore{}
	default:
		a.Close()
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}

	a.proxies = proxy.NewPool(cfg.Proxy.URLs, cfg.Proxy.ProbeURL, cfg.Crawler.RequestTimeout(), l)
	if !a.proxies.Empty() {
		l.Info("Proxy pool configured", zap.Int("proxies", len(cfg.Proxy.URLs)))
	}

	return a, nil
}

// Close releases every service the app owns.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.records != nil {
		a.records.Close()
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn("Publisher close failed", zap.Error(err))
		}
	}
}
