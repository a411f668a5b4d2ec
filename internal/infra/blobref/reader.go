// backend/internal/infra/blobref/reader.go
package blobref

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultMaxBytes caps one uploaded image.
const DefaultMaxBytes = 32 << 20

var (
	ErrEmptyReference = errors.New("blobref: empty reference")
	ErrTooLarge       = errors.New("blobref: content exceeds size limit")
	ErrUnsupported    = errors.New("blobref: unsupported reference scheme")
	ErrLocalDisabled  = errors.New("blobref: local references are disabled")
	ErrOutsideRoot    = errors.New("blobref: local reference outside root")
	ErrBlockedTarget  = errors.New("blobref: target address is not public")
)

// Blob is the resolved content behind an image reference.
type Blob struct {
	Data        []byte
	ContentType string
	Name        string
}

// Reader resolves the binary references a mint request may carry:
// data: URIs and http(s) URLs. Plain paths and file:// URLs resolve only
// under LocalRoot; with no root they are refused.
//
// http(s) targets that resolve to non-public addresses are refused unless
// AllowPrivateNetworks is set.
type Reader struct {
	HTTPClient           *http.Client
	MaxBytes             int64
	LocalRoot            string
	AllowPrivateNetworks bool
}

type Option func(*Reader)

// WithLocalRoot enables local references under dir.
func WithLocalRoot(dir string) Option {
	return func(r *Reader) { r.LocalRoot = strings.TrimSpace(dir) }
}

// WithPrivateNetworks lets http(s) references reach non-public addresses.
func WithPrivateNetworks() Option {
	return func(r *Reader) { r.AllowPrivateNetworks = true }
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{MaxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(r)
	}
	r.HTTPClient = newClient(r.AllowPrivateNetworks)
	return r
}

// newClient checks the resolved address on every dial, redirects included.
func newClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !allowPrivate {
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || blockedIP(ip) {
				return fmt.Errorf("%w: %s", ErrBlockedTarget, host)
			}
			return nil
		}
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast()
}

// Limit is the effective size cap; a nil Reader uses DefaultMaxBytes.
func (r *Reader) Limit() int64 {
	if r == nil || r.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return r.MaxBytes
}

func (r *Reader) Read(ctx context.Context, ref string) (Blob, error) {
	if r == nil {
		r = NewReader()
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Blob{}, ErrEmptyReference
	}

	switch {
	case strings.HasPrefix(ref, "data:"):
		return r.readDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.readHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return Blob{}, fmt.Errorf("blobref: parse %q: %w", ref, err)
		}
		return r.readLocal(u.Path)
	case strings.Contains(ref, "://"):
		return Blob{}, fmt.Errorf("%w: %s", ErrUnsupported, ref)
	default:
		return r.readLocal(ref)
	}
}

// data:[<mediatype>][;base64],<data>
func (r *Reader) readDataURI(ref string) (Blob, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return Blob{}, fmt.Errorf("blobref: malformed data uri")
	}
	ct := "text/plain"
	isBase64 := false
	for i, part := range strings.Split(header, ";") {
		switch {
		case i == 0 && part != "":
			ct = part
		case part == "base64":
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("blobref: decode data uri: %w", err)
		}
		data = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("blobref: unescape data uri: %w", err)
		}
		data = []byte(s)
	}
	if int64(len(data)) > r.Limit() {
		return Blob{}, ErrTooLarge
	}
	return Blob{Data: data, ContentType: ct}, nil
}

func (r *Reader) readHTTP(ctx context.Context, ref string) (Blob, error) {
	if !r.AllowPrivateNetworks {
		u, err := url.Parse(ref)
		if err != nil {
			return Blob{}, fmt.Errorf("blobref: parse %q: %w", ref, err)
		}
		host := u.Hostname()
		if ip := net.ParseIP(host); (ip != nil && blockedIP(ip)) || strings.EqualFold(host, "localhost") {
			return Blob{}, fmt.Errorf("%w: %s", ErrBlockedTarget, host)
		}
	}
	client := r.HTTPClient
	if client == nil {
		client = newClient(r.AllowPrivateNetworks)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Blob{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Blob{}, fmt.Errorf("blobref: fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Blob{}, fmt.Errorf("blobref: fetch %s: status %d", ref, resp.StatusCode)
	}
	data, err := ReadLimited(resp.Body, r.Limit())
	if err != nil {
		return Blob{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return Blob{Data: data, ContentType: ct, Name: baseName(ref)}, nil
}

// readLocal opens p relative to LocalRoot; the resolved path (symlinks
// included) must stay under the root.
func (r *Reader) readLocal(p string) (Blob, error) {
	if r.LocalRoot == "" {
		return Blob{}, ErrLocalDisabled
	}
	root, err := filepath.EvalSymlinks(r.LocalRoot)
	if err != nil {
		return Blob{}, fmt.Errorf("blobref: local root: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return Blob{}, fmt.Errorf("blobref: local root: %w", err)
	}

	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(target))
	if err != nil {
		return Blob{}, fmt.Errorf("blobref: open %s: %w", p, err)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return Blob{}, fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return r.readFile(resolved)
}

func (r *Reader) readFile(p string) (Blob, error) {
	f, err := os.Open(p)
	if err != nil {
		return Blob{}, fmt.Errorf("blobref: open %s: %w", p, err)
	}
	defer f.Close()

	data, err := ReadLimited(f, r.Limit())
	if err != nil {
		return Blob{}, err
	}
	return Blob{Data: data, ContentType: http.DetectContentType(data), Name: filepath.Base(p)}, nil
}

// ReadLimited reads src up to max bytes; more than that is ErrTooLarge.
func ReadLimited(src io.Reader, max int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(src, max+1))
	if err != nil {
		return nil, fmt.Errorf("blobref: read: %w", err)
	}
	if n > max {
		return nil, ErrTooLarge
	}
	return buf.Bytes(), nil
}

func baseName(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return filepath.Base(u.Path)
}
