package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/ports"
)

// Client calls a hosted, OpenAI-compatible transcription endpoint with one
// audio chunk per request. Payload limits and per-call timeouts are the
// orchestrator's concern; auth is the token provider's.
type Client struct {
	url      string
	model    string
	language string
	tokens   ports.TokenProvider
	client   *http.Client
}

func New(url, model, language string, tokens ports.TokenProvider) *Client {
	if language == "" {
		language = "en"
	}
	return &Client{
		url:      url,
		model:    model,
		language: language,
		tokens:   tokens,
		client:   &http.Client{},
	}
}

type response struct {
	Text string `json:"text"`
}

// Transcribe posts the chunk as multipart form data and returns its text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open chunk: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy chunk data: %w", err)
	}
	if c.model != "" {
		_ = w.WriteField("model", c.model)
	}
	_ = w.WriteField("language", c.language)
	_ = w.WriteField("response_format", "json")
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("transcription token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Text, nil
}
