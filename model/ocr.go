package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Recognizer turns a page image into text. Implementations may fail per
// page; the extractor degrades to direct text in that case.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TesseractClient calls a tesseract-server sidecar. Language and engine
// options are passed through unchanged from configuration.
type TesseractClient struct {
	serverURL string
	language  string
	client    *http.Client
}

func NewTesseractClient(serverURL, language string) *TesseractClient {
	return &TesseractClient{
		serverURL: serverURL,
		language:  language,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *TesseractClient) Recognize(ctx context.Context, image []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "page.png")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(image); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := c.serverURL + "/tesseract?lang=" + url.QueryEscape(c.language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OCR request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OCR server error [%d]: %s", resp.StatusCode, string(body))
	}

	return string(body), nil
}
