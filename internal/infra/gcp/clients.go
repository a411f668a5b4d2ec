// backend/internal/infra/gcp/clients.go
package gcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Options selects which Google clients a process needs.
type Options struct {
	ProjectID       string
	CredentialsFile string // 空なら ADC

	Firestore bool
	Storage   bool
	Messaging bool
}

// Clients owns the Google clients; Close releases all of them.
// Firestore / Storage are strict (error), Messaging is best-effort (warn + nil).
type Clients struct {
	ProjectID string

	Firestore *firestore.Client
	Storage   *storage.Client
	Messaging *messaging.Client

	opts []option.ClientOption
}

func New(ctx context.Context, o Options) (*Clients, error) {
	pid := strings.TrimSpace(o.ProjectID)
	c := &Clients{ProjectID: pid}

	c.opts = CredentialOptions(o.CredentialsFile)

	if o.Firestore {
		if pid == "" {
			return nil, errors.New("gcp: projectID is empty (set GCP_PROJECT_ID)")
		}
		fs, err := firestore.NewClient(ctx, pid, c.opts...)
		if err != nil {
			return nil, fmt.Errorf("gcp: firestore.NewClient failed (project=%s): %w", pid, err)
		}
		c.Firestore = fs
		log.Printf("[gcp] Firestore connected project=%s", pid)
	}

	if o.Storage {
		gcs, err := storage.NewClient(ctx, c.opts...)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("gcp: storage.NewClient failed: %w", err)
		}
		c.Storage = gcs
		log.Printf("[gcp] GCS storage client initialized")
	}

	if o.Messaging {
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: pid}, c.opts...)
		if err != nil {
			log.Printf("[gcp] WARN: firebase app init failed: %v (push disabled)", err)
		} else if m, err := app.Messaging(ctx); err != nil {
			log.Printf("[gcp] WARN: firebase messaging init failed: %v (push disabled)", err)
		} else {
			c.Messaging = m
			log.Printf("[gcp] Firebase Messaging initialized")
		}
	}

	return c, nil
}

// CredentialOptions returns the client options for a credentials file; empty uses ADC.
func CredentialOptions(credentialsFile string) []option.ClientOption {
	cred := strings.TrimSpace(credentialsFile)
	if cred == "" {
		log.Printf("[gcp] Using Application Default Credentials")
		return nil
	}
	log.Printf("[gcp] Using credentials file: .../%s", filepath.Base(cred))
	return []option.ClientOption{option.WithCredentialsFile(cred)}
}

// ClientOptions are the options shared with clients created elsewhere (Secret Manager).
func (c *Clients) ClientOptions() []option.ClientOption {
	if c == nil {
		return nil
	}
	return c.opts
}

func (c *Clients) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Firestore != nil {
		errs = append(errs, c.Firestore.Close())
	}
	if c.Storage != nil {
		errs = append(errs, c.Storage.Close())
	}
	return errors.Join(errs...)
}
