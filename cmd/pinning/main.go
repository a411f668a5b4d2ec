// backend/cmd/pinning/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	appcfg "assetmarket/internal/infra/config"
	"assetmarket/internal/infra/pinning"
)

// Uploads a JSON document (stdin, or a small sample document) to the pinning service.
func main() {
	fromStdin := flag.Bool("stdin", false, "read the JSON document from stdin")
	flag.Parse()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("[debug-pinning] config: %v", err)
	}
	u := pinning.NewHTTPUploader(cfg.PinningBaseURL, cfg.PinningGatewayURL, cfg.PinningJWT)

	var data []byte
	if *fromStdin {
		var payload any
		if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
			log.Fatalf("read json from stdin: %v", err)
		}
		data, err = json.Marshal(payload)
	} else {
		data, err = json.Marshal(map[string]any{
			"hello": "from assetmarket debug",
			"ts":    time.Now().UTC().Format(time.RFC3339),
		})
	}
	if err != nil {
		log.Fatalf("marshal json: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("[debug-pinning] UploadJSON to %s ...", cfg.PinningBaseURL)
	content, err := u.UploadJSON(ctx, data)
	if err != nil {
		log.Fatalf("UploadJSON failed: %v", err)
	}

	log.Printf("[debug-pinning] OK cid=%s url=%s", content.ID, content.URL)
}
