package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultPinataBaseURL = "https://api.pinata.cloud"

// PinataPinner submits file bytes to Pinata's pinning API and returns the
// resulting content id. Failures are returned as errors; the soft-fail
// sentinel policy is applied by the pipeline.
type PinataPinner struct {
	baseURL string
	jwt     string
	http    *http.Client
}

// NewPinataPinner creates a pinner against the given API base URL (the public
// Pinata endpoint when empty) authenticating with the given JWT.
func NewPinataPinner(baseURL, jwt string) *PinataPinner {
	if baseURL == "" {
		baseURL = defaultPinataBaseURL
	}
	return &PinataPinner{
		baseURL: baseURL,
		jwt:     jwt,
		// One blocking round-trip per upload; bound it.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Pin uploads the bytes with descriptive metadata and returns the CID.
func (p *PinataPinner) Pin(ctx context.Context, data []byte, fileName, mimeType string, metadata map[string]string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("Pin: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("Pin: write file part: %w", err)
	}

	meta := map[string]interface{}{
		"name":      fileName,
		"keyvalues": metadata,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("Pin: marshal metadata: %w", err)
	}
	if err := mw.WriteField("pinataMetadata", string(metaJSON)); err != nil {
		return "", fmt.Errorf("Pin: write metadata part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("Pin: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pinning/pinFileToIPFS", &buf)
	if err != nil {
		return "", fmt.Errorf("Pin: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.jwt)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("Pin: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("Pin: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Pin: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("Pin: decode response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("Pin: response missing IpfsHash")
	}

	return out.IpfsHash, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
