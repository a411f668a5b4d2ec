package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"

	"assetmarket/internal/application/cache"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(env.Options{Environment: map[string]string{}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.PersistenceBackend != BackendSQLite || cfg.ContentBackend != ContentNone {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.NotifyTimeout != 10*time.Second || cfg.NotifyWorkers != 2 {
		t.Fatalf("notify = %v/%d", cfg.NotifyTimeout, cfg.NotifyWorkers)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("cors = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.NeedsGCP() {
		t.Fatal("sqlite + no content should not need GCP")
	}
	if r := cfg.ContentReader(); r.LocalRoot != "" || r.AllowPrivateNetworks {
		t.Fatalf("content reader = root %q private %v, want both off", r.LocalRoot, r.AllowPrivateNetworks)
	}
}

func TestContentReader_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := load(env.Options{Environment: map[string]string{
		"CONTENT_LOCAL_ROOT":             "/srv/uploads",
		"CONTENT_ALLOW_PRIVATE_NETWORKS": "true",
	}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := cfg.ContentReader()
	if r.LocalRoot != "/srv/uploads" || !r.AllowPrivateNetworks {
		t.Fatalf("content reader = root %q private %v", r.LocalRoot, r.AllowPrivateNetworks)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := load(env.Options{Environment: map[string]string{
		"PERSISTENCE_BACKEND":  " Postgres ",
		"DATABASE_URL":         "postgres://u:p@localhost/market",
		"CONTENT_BACKEND":      "gcs",
		"CONTENT_BUCKET":       "market-content",
		"CACHE_TTL_STATS":      "5m",
		"CORS_ALLOWED_ORIGINS": "https://a.test,https://b.test",
	}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PersistenceBackend != BackendPostgres {
		t.Fatalf("backend = %q", cfg.PersistenceBackend)
	}
	if got := cfg.TTLPolicy().For(cache.PlatformStatsKey()); got != 5*time.Minute {
		t.Fatalf("stats ttl = %v, want 5m", got)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("cors = %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.NeedsGCP() {
		t.Fatal("gcs content needs GCP")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "firestore without project", env: map[string]string{"PERSISTENCE_BACKEND": "firestore"}, wantErr: "GCP_PROJECT_ID"},
		{name: "postgres without url", env: map[string]string{"PERSISTENCE_BACKEND": "postgres"}, wantErr: "DATABASE_URL"},
		{name: "unknown backend", env: map[string]string{"PERSISTENCE_BACKEND": "mongo"}, wantErr: "unknown PERSISTENCE_BACKEND"},
		{name: "gcs without bucket", env: map[string]string{"CONTENT_BACKEND": "gcs"}, wantErr: "CONTENT_BUCKET"},
		{name: "sendgrid without from", env: map[string]string{"SENDGRID_API_KEY": "k"}, wantErr: "SENDGRID_FROM"},
		{name: "bad duration", env: map[string]string{"NOTIFY_TIMEOUT": "soon"}, wantErr: "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := load(env.Options{Environment: tt.env})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	t.Parallel()

	cfg := &Config{PinningJWT: "sm://jwt", SendGridAPIKey: "plain"}
	err := cfg.ResolveSecrets(context.Background(), func(_ context.Context, v string) (string, error) {
		if strings.HasPrefix(v, "sm://") {
			return "resolved-" + strings.TrimPrefix(v, "sm://"), nil
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("ResolveSecrets: %v", err)
	}
	if cfg.PinningJWT != "resolved-jwt" || cfg.SendGridAPIKey != "plain" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
