package secret

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestVersionName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref  string
		want string
	}{
		{ref: "sm://sendgrid-key", want: "projects/p1/secrets/sendgrid-key/versions/latest"},
		{ref: "sm://projects/other/secrets/jwt", want: "projects/other/secrets/jwt/versions/latest"},
		{ref: "sm://projects/other/secrets/jwt/versions/3", want: "projects/other/secrets/jwt/versions/3"},
	}
	for _, tt := range tests {
		if got := VersionName("p1", tt.ref); got != tt.want {
			t.Fatalf("VersionName(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestProvider_Resolve(t *testing.T) {
	t.Parallel()

	store := map[string]string{
		"projects/p1/secrets/jwt/versions/latest":   " secret-jwt \n",
		"projects/p1/secrets/empty/versions/latest": "",
	}
	p := &Provider{
		ProjectID: "p1",
		access: func(_ context.Context, name string) ([]byte, error) {
			v, ok := store[name]
			if !ok {
				return nil, status.Error(codes.NotFound, "no such secret")
			}
			return []byte(v), nil
		},
	}

	ctx := context.Background()
	if got, err := p.Resolve(ctx, "plain-value"); err != nil || got != "plain-value" {
		t.Fatalf("Resolve(plain) = %q, %v", got, err)
	}
	if got, err := p.Resolve(ctx, "sm://jwt"); err != nil || got != "secret-jwt" {
		t.Fatalf("Resolve(sm://jwt) = %q, %v", got, err)
	}
	if _, err := p.Resolve(ctx, "sm://missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := p.Resolve(ctx, "sm://empty"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var nilProvider *Provider
	if _, err := nilProvider.Resolve(ctx, "sm://jwt"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
