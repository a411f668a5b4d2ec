package blobref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReader_Read(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)

	root := t.TempDir()
	local := filepath.Join(root, "aurora.txt")
	if err := os.WriteFile(local, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name     string
		ref      string
		wantData string
		wantCT   string
		wantErr  error
	}{
		{name: "base64 data uri", ref: "data:image/png;base64,aGVsbG8=", wantData: "hello", wantCT: "image/png"},
		{name: "plain data uri", ref: "data:,hi%20there", wantData: "hi there", wantCT: "text/plain"},
		{name: "http", ref: srv.URL + "/aurora.png", wantData: "png-bytes", wantCT: "image/png"},
		{name: "path under root", ref: local, wantData: "hello"},
		{name: "relative path under root", ref: "aurora.txt", wantData: "hello"},
		{name: "file url under root", ref: "file://" + local, wantData: "hello"},
		{name: "empty", ref: "  ", wantErr: ErrEmptyReference},
		{name: "unsupported", ref: "ipfs://Qm123", wantErr: ErrUnsupported},
	}
	r := NewReader(WithLocalRoot(root), WithPrivateNetworks())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Read(context.Background(), tt.ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got.Data) != tt.wantData {
				t.Fatalf("data = %q, want %q", got.Data, tt.wantData)
			}
			if tt.wantCT != "" && got.ContentType != tt.wantCT {
				t.Fatalf("content type = %q, want %q", got.ContentType, tt.wantCT)
			}
		})
	}

	if _, err := r.Read(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestReader_LocalReferencesDisabledByDefault(t *testing.T) {
	t.Parallel()

	secret := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(secret, []byte("PRIVATE_KEY=server-side-secret"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader()
	for _, ref := range []string{secret, "file://" + secret, "/proc/self/environ", "relative/path.png"} {
		got, err := r.Read(context.Background(), ref)
		if !errors.Is(err, ErrLocalDisabled) {
			t.Fatalf("Read(%q) err = %v, want ErrLocalDisabled", ref, err)
		}
		if len(got.Data) != 0 {
			t.Fatalf("Read(%q) returned %d bytes", ref, len(got.Data))
		}
	}
}

func TestReader_LocalReferenceOutsideRoot(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	root := filepath.Join(base, "uploads")
	if err := os.Mkdir(root, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	outside := filepath.Join(base, "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "link.txt")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	r := NewReader(WithLocalRoot(root))
	tests := []struct {
		name string
		ref  string
	}{
		{name: "absolute", ref: outside},
		{name: "dot dot", ref: "../secret.txt"},
		{name: "file url dot dot", ref: "file://" + root + "/../secret.txt"},
		{name: "symlink escape", ref: "link.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Read(context.Background(), tt.ref); !errors.Is(err, ErrOutsideRoot) {
				t.Fatalf("err = %v, want ErrOutsideRoot", err)
			}
		})
	}
}

func TestReader_BlocksNonPublicTargets(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("internal"))
	}))
	t.Cleanup(srv.Close)

	port := srv.URL[strings.LastIndex(srv.URL, ":")+1:]
	r := NewReader()
	tests := []struct {
		name string
		ref  string
	}{
		{name: "loopback literal", ref: srv.URL + "/x.png"},
		{name: "localhost", ref: "http://localhost:" + port + "/x.png"},
		{name: "metadata server", ref: "http://169.254.169.254/computeMetadata/v1/"},
		{name: "private range", ref: "http://10.0.0.8/x.png"},
		{name: "ipv6 loopback", ref: "http://[::1]:" + port + "/x.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Read(context.Background(), tt.ref); !errors.Is(err, ErrBlockedTarget) {
				t.Fatalf("err = %v, want ErrBlockedTarget", err)
			}
		})
	}
	if hits != 0 {
		t.Fatalf("server hits = %d, want 0", hits)
	}
}

func TestReader_SizeLimit(t *testing.T) {
	t.Parallel()

	r := &Reader{MaxBytes: 4}
	if _, err := r.Read(context.Background(), "data:,too-long"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}
