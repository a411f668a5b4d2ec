// backend/internal/infra/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"assetmarket/internal/application/cache"
	"assetmarket/internal/application/notify"
	"assetmarket/internal/infra/blobref"
)

// Persistence backends.
const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
)

// Content backends.
const (
	ContentPinning = "pinning"
	ContentGCS     = "gcs"
	ContentNone    = "none"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	ProjectID       string `env:"GCP_PROJECT_ID"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// firestore | postgres | sqlite
	PersistenceBackend string `env:"PERSISTENCE_BACKEND" envDefault:"sqlite"`
	DatabaseURL        string `env:"DATABASE_URL"`
	SQLitePath         string `env:"SQLITE_PATH" envDefault:"assetmarket.db"`

	// pinning | gcs | none
	ContentBackend    string `env:"CONTENT_BACKEND" envDefault:"none"`
	PinningBaseURL    string `env:"PINNING_BASE_URL" envDefault:"https://api.pinata.cloud"`
	PinningGatewayURL string `env:"PINNING_GATEWAY_URL" envDefault:"https://gateway.pinata.cloud"`
	PinningJWT        string `env:"PINNING_JWT"`
	ContentBucket     string `env:"CONTENT_BUCKET"`

	// 画像参照: ローカルパスは CONTENT_LOCAL_ROOT 配下のみ（空なら無効）、
	// プライベートアドレスへの取得は開発用フラグでのみ許可
	ContentLocalRoot            string `env:"CONTENT_LOCAL_ROOT"`
	ContentAllowPrivateNetworks bool   `env:"CONTENT_ALLOW_PRIVATE_NETWORKS" envDefault:"false"`

	// 通知チャネル（未設定のチャネルはスキップ）
	SendGridAPIKey    string        `env:"SENDGRID_API_KEY"`
	SendGridFrom      string        `env:"SENDGRID_FROM"`
	NATSURL           string        `env:"NATS_URL"`
	NATSSubjectPrefix string        `env:"NATS_SUBJECT_PREFIX" envDefault:"assetmarket.notifications"`
	FCMEnabled        bool          `env:"FCM_ENABLED" envDefault:"false"`
	NotifyWorkers     int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	NotifyQueueSize   int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifyTimeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`

	CacheTTLAssets  time.Duration `env:"CACHE_TTL_ASSETS" envDefault:"30s"`
	CacheTTLAsset   time.Duration `env:"CACHE_TTL_ASSET" envDefault:"15s"`
	CacheTTLBalance time.Duration `env:"CACHE_TTL_BALANCE" envDefault:"10s"`
	CacheTTLStats   time.Duration `env:"CACHE_TTL_STATS" envDefault:"60s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	OTelEndpoint       string   `env:"OTEL_EXPORTER_ENDPOINT"`
	OTelSampleRatio    float64  `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

// Load は環境変数を読み込み Config を返します。
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.PersistenceBackend = strings.ToLower(strings.TrimSpace(cfg.PersistenceBackend))
	cfg.ContentBackend = strings.ToLower(strings.TrimSpace(cfg.ContentBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.PersistenceBackend {
	case BackendFirestore:
		if strings.TrimSpace(c.ProjectID) == "" {
			errs = append(errs, errors.New("GCP_PROJECT_ID is required for firestore persistence"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres persistence"))
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for sqlite persistence"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PERSISTENCE_BACKEND %q", c.PersistenceBackend))
	}

	switch c.ContentBackend {
	case ContentNone:
	case ContentPinning:
		if strings.TrimSpace(c.PinningBaseURL) == "" {
			errs = append(errs, errors.New("PINNING_BASE_URL is required for pinning content"))
		}
	case ContentGCS:
		if strings.TrimSpace(c.ContentBucket) == "" {
			errs = append(errs, errors.New("CONTENT_BUCKET is required for gcs content"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONTENT_BACKEND %q", c.ContentBackend))
	}

	if c.FCMEnabled && strings.TrimSpace(c.ProjectID) == "" {
		errs = append(errs, errors.New("GCP_PROJECT_ID is required when FCM_ENABLED"))
	}
	if strings.TrimSpace(c.SendGridAPIKey) != "" && strings.TrimSpace(c.SendGridFrom) == "" {
		errs = append(errs, errors.New("SENDGRID_FROM is required when SENDGRID_API_KEY is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// NeedsGCP reports whether any Google client has to be created.
func (c *Config) NeedsGCP() bool {
	return c.PersistenceBackend == BackendFirestore || c.ContentBackend == ContentGCS || c.FCMEnabled
}

// ResolveSecrets replaces sm:// references in secret-valued settings.
func (c *Config) ResolveSecrets(ctx context.Context, resolve func(context.Context, string) (string, error)) error {
	for _, f := range []*string{&c.PinningJWT, &c.SendGridAPIKey, &c.DatabaseURL} {
		v, err := resolve(ctx, *f)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

// ContentReader builds the image-reference reader for content uploads.
func (c *Config) ContentReader() *blobref.Reader {
	var opts []blobref.Option
	if root := strings.TrimSpace(c.ContentLocalRoot); root != "" {
		opts = append(opts, blobref.WithLocalRoot(root))
	}
	if c.ContentAllowPrivateNetworks {
		opts = append(opts, blobref.WithPrivateNetworks())
	}
	return blobref.NewReader(opts...)
}

func (c *Config) TTLPolicy() cache.TTLPolicy {
	p := cache.DefaultTTLPolicy()
	p.Families[cache.FamilyAssets] = c.CacheTTLAssets
	p.Families[cache.FamilyAsset] = c.CacheTTLAsset
	p.Families[cache.FamilyWalletBalance] = c.CacheTTLBalance
	p.Families[cache.FamilyPlatformStats] = c.CacheTTLStats
	return p
}

func (c *Config) NotifyConfig() notify.Config {
	return notify.Config{
		Workers:   c.NotifyWorkers,
		QueueSize: c.NotifyQueueSize,
		Timeout:   c.NotifyTimeout,
	}
}
