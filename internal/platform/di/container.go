// backend/internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	httpin "assetmarket/internal/adapters/in/http"
	"assetmarket/internal/adapters/out/alert"
	dbadapter "assetmarket/internal/adapters/out/db"
	fsadapter "assetmarket/internal/adapters/out/firestore"
	gcsadapter "assetmarket/internal/adapters/out/gcs"
	"assetmarket/internal/adapters/out/mail"
	"assetmarket/internal/adapters/out/push"
	"assetmarket/internal/application/cache"
	"assetmarket/internal/application/marketplace"
	"assetmarket/internal/application/notify"
	"assetmarket/internal/application/query"
	assetdom "assetmarket/internal/domain/asset"
	notifdom "assetmarket/internal/domain/notification"
	appcfg "assetmarket/internal/infra/config"
	"assetmarket/internal/infra/database"
	"assetmarket/internal/infra/gcp"
	"assetmarket/internal/infra/pinning"
	"assetmarket/internal/infra/secret"
	solanainfra "assetmarket/internal/infra/solana"
)

// Container owns every long-lived dependency of the API process.
type Container struct {
	Config *appcfg.Config

	// Clients (owned; Close-managed)
	GCP     *gcp.Clients
	DB      *database.DB
	NATS    *nats.Conn
	Secrets *secret.Provider

	Cache        *cache.ReadCache
	Dispatcher   *notify.Dispatcher
	Orchestrator *marketplace.Orchestrator
	Catalog      *query.CatalogQuery

	health func(ctx context.Context) error
}

func NewContainer(ctx context.Context, cfg *appcfg.Config) (_ *Container, err error) {
	if cfg == nil {
		return nil, errors.New("di: config is nil")
	}
	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	// 1) sm:// で渡された秘密値を解決
	if err := c.resolveSecrets(ctx); err != nil {
		return nil, err
	}

	// 2) GCP clients (必要なものだけ)
	if cfg.NeedsGCP() {
		clients, err := gcp.New(ctx, gcp.Options{
			ProjectID:       cfg.ProjectID,
			CredentialsFile: cfg.CredentialsFile,
			Firestore:       cfg.PersistenceBackend == appcfg.BackendFirestore,
			Storage:         cfg.ContentBackend == appcfg.ContentGCS,
			Messaging:       cfg.FCMEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("di: %w", err)
		}
		c.GCP = clients
	}

	// 3) Persistence gateway + recipient directory
	store, reader, directory, err := c.buildPersistence(ctx)
	if err != nil {
		return nil, err
	}

	// 4) Read cache / catalog
	c.Cache = cache.New(cache.WithTTLPolicy(cfg.TTLPolicy()))
	c.Catalog = query.NewCatalogQuery(reader, c.Cache)

	// 5) Notification fan-out (best-effort channels)
	c.Dispatcher = notify.NewDispatcher(
		notify.NewFanout(directory, c.buildChannels()...),
		cfg.NotifyConfig(),
		notify.LogError,
	)

	// 6) Orchestrator
	c.Orchestrator = marketplace.NewOrchestrator(
		c.buildContentGateway(),
		store,
		solanainfra.NewSyntheticIssuer(),
		c.Cache,
		c.Dispatcher,
	)

	log.Printf("[di] container ready persistence=%s content=%s", cfg.PersistenceBackend, cfg.ContentBackend)
	return c, nil
}

func (c *Container) resolveSecrets(ctx context.Context) error {
	cfg := c.Config
	if !secret.IsReference(cfg.PinningJWT) && !secret.IsReference(cfg.SendGridAPIKey) && !secret.IsReference(cfg.DatabaseURL) {
		return nil
	}
	p, err := secret.NewProvider(ctx, cfg.ProjectID, gcp.CredentialOptions(cfg.CredentialsFile)...)
	if err != nil {
		return fmt.Errorf("di: secret provider: %w", err)
	}
	c.Secrets = p
	if err := cfg.ResolveSecrets(ctx, p.Resolve); err != nil {
		return fmt.Errorf("di: resolve secrets: %w", err)
	}
	log.Printf("[di] secrets resolved via Secret Manager project=%s", cfg.ProjectID)
	return nil
}

func (c *Container) buildPersistence(ctx context.Context) (
	marketplace.PersistenceGateway,
	assetdom.Reader,
	notifdom.RecipientDirectory,
	error,
) {
	cfg := c.Config

	switch cfg.PersistenceBackend {
	case appcfg.BackendFirestore:
		fs := c.GCP.Firestore
		c.health = func(ctx context.Context) error {
			_, err := fs.Collection("stats").Doc("platform").Get(ctx)
			if err != nil && !isNotFound(err) {
				return err
			}
			return nil
		}
		repo := fsadapter.NewAssetRepositoryFS(fs)
		return repo, repo, fsadapter.NewRecipientDirectoryFS(fs), nil

	case appcfg.BackendPostgres, appcfg.BackendSQLite:
		var (
			conn *database.DB
			err  error
		)
		if cfg.PersistenceBackend == appcfg.BackendPostgres {
			conn, err = database.NewConnection(ctx, cfg.DatabaseURL)
		} else {
			conn, err = database.OpenSQLite(ctx, cfg.SQLitePath)
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("di: %w", err)
		}
		c.DB = conn
		c.health = conn.Client.PingContext

		repo := dbadapter.NewAssetRepositorySQL(conn.Client, conn.Dialect)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("di: %w", err)
		}
		dir := dbadapter.NewRecipientDirectorySQL(conn.Client, conn.Dialect)
		if err := dir.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("di: %w", err)
		}
		return repo, repo, dir, nil

	default:
		return nil, nil, nil, fmt.Errorf("di: unknown persistence backend %q", cfg.PersistenceBackend)
	}
}

// buildContentGateway returns nil when content storage is disabled;
// the mint pipeline then skips its upload stages.
func (c *Container) buildContentGateway() marketplace.ContentGateway {
	cfg := c.Config
	switch cfg.ContentBackend {
	case appcfg.ContentPinning:
		log.Printf("[di] content gateway = pinning baseURL=%s", cfg.PinningBaseURL)
		return pinning.NewHTTPUploader(cfg.PinningBaseURL, cfg.PinningGatewayURL, cfg.PinningJWT).
			WithSource(cfg.ContentReader())
	case appcfg.ContentGCS:
		log.Printf("[di] content gateway = gcs bucket=%s", cfg.ContentBucket)
		store := gcsadapter.NewContentStoreGCS(c.GCP.Storage, cfg.ContentBucket)
		store.Source = cfg.ContentReader()
		return store
	default:
		log.Printf("[di] content gateway disabled")
		return nil
	}
}

func (c *Container) buildChannels() []notify.Channel {
	cfg := c.Config
	var channels []notify.Channel

	if cfg.SendGridAPIKey != "" {
		client := mail.NewSendGridClient(cfg.SendGridAPIKey, "")
		channels = append(channels, mail.NewNotificationMailer(client, cfg.SendGridFrom))
		log.Printf("[di] notify channel = mail from=%s", cfg.SendGridFrom)
	}

	if c.GCP != nil && c.GCP.Messaging != nil {
		channels = append(channels, push.NewFCMClient(c.GCP.Messaging))
		log.Printf("[di] notify channel = push")
	}

	if cfg.NATSURL != "" {
		nc, err := alert.Connect(cfg.NATSURL, "assetmarket-api")
		if err != nil {
			log.Printf("[di] WARN: %v (nats channel disabled)", err)
		} else {
			c.NATS = nc
			channels = append(channels, alert.NewNATSPublisher(nc, cfg.NATSSubjectPrefix))
			log.Printf("[di] notify channel = nats prefix=%s", cfg.NATSSubjectPrefix)
		}
	}

	return channels
}

func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		Marketplace:    c.Orchestrator,
		Catalog:        c.Catalog,
		AllowedOrigins: c.Config.CORSAllowedOrigins,
		Health:         c.health,
	}
}

// Close drains pending notifications before releasing clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Dispatcher != nil {
		if err := c.Dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notify dispatcher: %w", err))
		}
	}
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	if c.GCP != nil {
		errs = append(errs, c.GCP.Close())
	}
	if c.Secrets != nil {
		errs = append(errs, c.Secrets.Close())
	}
	return errors.Join(errs...)
}
