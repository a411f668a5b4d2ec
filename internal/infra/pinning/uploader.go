// backend/internal/infra/pinning/uploader.go
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	assetdom "assetmarket/internal/domain/asset"
	"assetmarket/internal/infra/blobref"
)

const defaultGatewayURL = "https://gateway.pinata.cloud"

var ErrNotConfigured = errors.New("pinning: base url is empty")

// Pinning サービス (Pinata 互換 API) を叩く HTTP 実装
type HTTPUploader struct {
	client     *http.Client
	baseURL    string // 例: "https://api.pinata.cloud"
	gatewayURL string // 例: "https://gateway.pinata.cloud"
	jwt        string
	source     *blobref.Reader
}

// NewHTTPUploader は pinning 用の HTTP uploader を生成します。
func NewHTTPUploader(baseURL, gatewayURL, jwt string) *HTTPUploader {
	gatewayURL = strings.TrimRight(strings.TrimSpace(gatewayURL), "/")
	if gatewayURL == "" {
		gatewayURL = defaultGatewayURL
	}
	return &HTTPUploader{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		gatewayURL: gatewayURL,
		jwt:        strings.TrimSpace(jwt),
		source:     blobref.NewReader(),
	}
}

// WithSource replaces the reader used to resolve image references.
func (u *HTTPUploader) WithSource(r *blobref.Reader) *HTTPUploader {
	if r != nil {
		u.source = r
	}
	return u
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// ----------------------------------------------------------------------
// marketplace.ContentGateway 実装
// ----------------------------------------------------------------------

// UploadFile は ref の中身を読み込み /pinning/pinFileToIPFS に multipart で送ります。
func (u *HTTPUploader) UploadFile(ctx context.Context, ref, name string) (assetdom.Content, error) {
	if u.baseURL == "" {
		return assetdom.Content{}, ErrNotConfigured
	}
	blob, err := u.source.Read(ctx, ref)
	if err != nil {
		return assetdom.Content{}, err
	}

	fileName := strings.TrimSpace(blob.Name)
	if fileName == "" || fileName == "." || fileName == "/" {
		fileName = "content"
	}
	log.Printf("[pinning] UploadFile start name=%q bytes=%d", name, len(blob.Data))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return assetdom.Content{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(blob.Data); err != nil {
		return assetdom.Content{}, fmt.Errorf("write form file: %w", err)
	}
	meta, _ := json.Marshal(map[string]any{"name": strings.TrimSpace(name)})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return assetdom.Content{}, fmt.Errorf("write metadata field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return assetdom.Content{}, fmt.Errorf("close multipart: %w", err)
	}

	return u.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
}

// UploadMetadata は metadata document を /pinning/pinJSONToIPFS に送ります。
func (u *HTTPUploader) UploadMetadata(ctx context.Context, doc assetdom.MetadataDocument) (assetdom.Content, error) {
	if u.baseURL == "" {
		return assetdom.Content{}, ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]any{
		"pinataContent":  doc,
		"pinataMetadata": map[string]string{"name": doc.Name},
	})
	if err != nil {
		return assetdom.Content{}, fmt.Errorf("marshal metadata: %w", err)
	}
	log.Printf("[pinning] UploadMetadata start name=%q bytes=%d", doc.Name, len(payload))
	return u.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

// UploadJSON pins a raw JSON document (debug tool).
func (u *HTTPUploader) UploadJSON(ctx context.Context, raw []byte) (assetdom.Content, error) {
	if len(raw) == 0 {
		return assetdom.Content{}, fmt.Errorf("json is empty")
	}
	if u.baseURL == "" {
		return assetdom.Content{}, ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]json.RawMessage{"pinataContent": raw})
	if err != nil {
		return assetdom.Content{}, fmt.Errorf("wrap json: %w", err)
	}
	return u.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
}

func (u *HTTPUploader) pin(ctx context.Context, path, contentType string, body io.Reader) (assetdom.Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+path, body)
	if err != nil {
		log.Printf("[pinning] create request FAILED err=%v", err)
		return assetdom.Content{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if u.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+u.jwt)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		log.Printf("[pinning] http request FAILED path=%s err=%v", path, err)
		return assetdom.Content{}, fmt.Errorf("pin request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[pinning] pin FAILED path=%s status=%d body=%s", path, resp.StatusCode, string(bodyBytes))
		return assetdom.Content{}, fmt.Errorf("pin failed: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var res pinResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		log.Printf("[pinning] decode response FAILED err=%v body=%s", err, string(bodyBytes))
		return assetdom.Content{}, fmt.Errorf("decode pin response: %w", err)
	}
	if strings.TrimSpace(res.IpfsHash) == "" {
		return assetdom.Content{}, fmt.Errorf("pin response has empty IpfsHash")
	}

	out := assetdom.Content{
		ID:  res.IpfsHash,
		URL: u.gatewayURL + "/ipfs/" + res.IpfsHash,
	}
	log.Printf("[pinning] pin OK path=%s hash=%s", path, res.IpfsHash)
	return out, nil
}
