// backend/internal/infra/secret/provider_sm.go
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Scheme marks a config value that names a Secret Manager secret.
const Scheme = "sm://"

var (
	ErrNotConfigured = errors.New("secret_provider: not configured")
	ErrNotFound      = errors.New("secret_provider: secret not found")
)

// Provider resolves sm://<secret> references to their latest payload.
type Provider struct {
	ProjectID string

	client *secretmanager.Client
	access func(ctx context.Context, name string) ([]byte, error)
}

func NewProvider(ctx context.Context, projectID string, opts ...option.ClientOption) (*Provider, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		return nil, fmt.Errorf("%w: projectID is empty", ErrNotConfigured)
	}

	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secret_provider: new client: %w", err)
	}

	p := &Provider{ProjectID: pid, client: c}
	p.access = func(ctx context.Context, name string) ([]byte, error) {
		res, err := c.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
		if err != nil {
			return nil, err
		}
		if res == nil || res.Payload == nil {
			return nil, nil
		}
		return res.Payload.Data, nil
	}
	return p, nil
}

// IsReference reports whether v should go through Resolve.
func IsReference(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), Scheme)
}

// VersionName expands a reference into a full secret version name.
//
//	sm://sendgrid-key                          -> projects/<pid>/secrets/sendgrid-key/versions/latest
//	sm://projects/x/secrets/y                  -> projects/x/secrets/y/versions/latest
//	sm://projects/x/secrets/y/versions/3       -> as is
func VersionName(projectID, ref string) string {
	id := strings.Trim(strings.TrimPrefix(strings.TrimSpace(ref), Scheme), "/")
	if !strings.HasPrefix(id, "projects/") {
		id = fmt.Sprintf("projects/%s/secrets/%s", projectID, id)
	}
	if !strings.Contains(id, "/versions/") {
		id += "/versions/latest"
	}
	return id
}

// Resolve returns v unchanged unless it is an sm:// reference.
func (p *Provider) Resolve(ctx context.Context, v string) (string, error) {
	if !IsReference(v) {
		return v, nil
	}
	if p == nil || p.access == nil {
		return "", ErrNotConfigured
	}

	name := VersionName(p.ProjectID, v)
	data, err := p.access(ctx, name)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("secret_provider: access %s: %w", name, err)
	}

	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNotFound, name)
	}
	return s, nil
}

func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
