// backend/internal/adapters/out/gcs/content_store_gcs.go
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	gcscommon "assetmarket/internal/adapters/out/gcs/common"
	assetdom "assetmarket/internal/domain/asset"
	"assetmarket/internal/infra/blobref"
)

// ContentStoreGCS is a content-addressed store on a GCS bucket.
// Objects are named by the sha256 of their bytes, so identical uploads
// map to one object and the digest doubles as the content id.
type ContentStoreGCS struct {
	Client *storage.Client
	Bucket string
	Source *blobref.Reader
}

const defaultContentBucket = "assetmarket_content"

// ErrForeignBucket rejects GCS references outside the content bucket.
var ErrForeignBucket = errors.New("ContentStoreGCS: reference outside content bucket")

func NewContentStoreGCS(client *storage.Client, bucket string) *ContentStoreGCS {
	b := strings.TrimSpace(bucket)
	if b == "" {
		b = defaultContentBucket
	}
	return &ContentStoreGCS{
		Client: client,
		Bucket: b,
		Source: blobref.NewReader(),
	}
}

func (s *ContentStoreGCS) UploadFile(ctx context.Context, ref, name string) (assetdom.Content, error) {
	if s == nil || s.Client == nil {
		return assetdom.Content{}, errors.New("ContentStoreGCS: nil storage client")
	}

	blob, err := s.read(ctx, ref)
	if err != nil {
		return assetdom.Content{}, err
	}
	digest := gcscommon.ContentDigest(blob.Data)
	object := gcscommon.ContentObjectPath("content", digest, extFor(blob))

	if err := s.put(ctx, object, blob.Data, blob.ContentType, map[string]string{
		"name": strings.TrimSpace(name),
	}); err != nil {
		return assetdom.Content{}, err
	}
	return assetdom.Content{
		ID:  digest,
		URL: gcscommon.GCSPublicURL(s.Bucket, object, defaultContentBucket),
	}, nil
}

func (s *ContentStoreGCS) UploadMetadata(ctx context.Context, doc assetdom.MetadataDocument) (assetdom.Content, error) {
	if s == nil || s.Client == nil {
		return assetdom.Content{}, errors.New("ContentStoreGCS: nil storage client")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return assetdom.Content{}, fmt.Errorf("marshal metadata: %w", err)
	}
	digest := gcscommon.ContentDigest(body)
	object := gcscommon.ContentObjectPath("metadata", digest, ".json")

	if err := s.put(ctx, object, body, "application/json", nil); err != nil {
		return assetdom.Content{}, err
	}
	return assetdom.Content{
		ID:  digest,
		URL: gcscommon.GCSPublicURL(s.Bucket, object, defaultContentBucket),
	}, nil
}

// read resolves ref; GCS references are read through the storage client
// and only from the store's own bucket.
func (s *ContentStoreGCS) read(ctx context.Context, ref string) (blobref.Blob, error) {
	if bucket, object, ok := gcscommon.ParseGCSURL(ref); ok {
		if bucket != s.Bucket {
			return blobref.Blob{}, fmt.Errorf("%w: %s", ErrForeignBucket, bucket)
		}
		if s.Client == nil {
			return blobref.Blob{}, errors.New("ContentStoreGCS: nil storage client")
		}
		rc, err := s.Client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return blobref.Blob{}, fmt.Errorf("read gcs object %s/%s: %w", bucket, object, err)
		}
		defer rc.Close()

		data, err := blobref.ReadLimited(rc, s.Source.Limit())
		if err != nil {
			return blobref.Blob{}, err
		}
		return blobref.Blob{Data: data, ContentType: rc.Attrs.ContentType, Name: filepath.Base(object)}, nil
	}
	src := s.Source
	if src == nil {
		src = blobref.NewReader()
	}
	return src.Read(ctx, ref)
}

// put writes once; an existing object with the same digest is left untouched.
func (s *ContentStoreGCS) put(ctx context.Context, object string, data []byte, contentType string, md map[string]string) error {
	obj := s.Client.Bucket(s.Bucket).Object(object).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = md

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			log.Printf("[gcs] content exists object=%s", object)
			return nil
		}
		return fmt.Errorf("close gcs object %s: %w", object, err)
	}
	log.Printf("[gcs] uploaded object=%s bytes=%d", object, len(data))
	return nil
}

func extFor(b blobref.Blob) string {
	if ext := filepath.Ext(b.Name); ext != "" && len(ext) <= 6 {
		return strings.ToLower(ext)
	}
	switch strings.SplitN(b.ContentType, ";", 2)[0] {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/json":
		return ".json"
	default:
		return ""
	}
}
