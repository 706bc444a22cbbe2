package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

// Client hands a whole video to the processing backend in one multipart
// request. It is the fallback delivery path when the resumable endpoint is
// unavailable, so it streams the file instead of buffering it.
type Client struct {
	url    string
	tokens ports.TokenProvider
	client *http.Client
	log    zerolog.Logger
}

const handoffTimeout = 5 * time.Minute

func New(url string, tokens ports.TokenProvider, log zerolog.Logger) *Client {
	return &Client{
		url:    url,
		tokens: tokens,
		client: &http.Client{Timeout: handoffTimeout},
		log:    log,
	}
}

type projectMeta struct {
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	Duration  float64 `json:"duration_seconds"`
	SizeBytes int64   `json:"size_bytes"`
	MIME      string  `json:"mime_type"`
}

// Handoff streams the video plus project metadata and returns the backend's
// processing handle.
func (c *Client) Handoff(ctx context.Context, path string, media types.MediaInfo, title string) (ports.HandoffResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.HandoffResult{}, fmt.Errorf("open video: %w", err)
	}

	meta := projectMeta{
		ProjectID: uuid.NewString(),
		Title:     title,
		Duration:  media.Duration.Seconds(),
		SizeBytes: media.SizeBytes,
		MIME:      media.MIME,
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		err := writeParts(mw, f, filepath.Base(path), meta)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, pr)
	if err != nil {
		return ports.HandoffResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return ports.HandoffResult{}, fmt.Errorf("backend token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	c.log.Info().Str("project_id", meta.ProjectID).Int64("bytes", media.SizeBytes).Msg("handing off to backend")

	resp, err := c.client.Do(req)
	if err != nil {
		return ports.HandoffResult{}, fmt.Errorf("backend handoff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ports.HandoffResult{}, fmt.Errorf("backend status %d: %s", resp.StatusCode, string(b))
	}

	var result ports.HandoffResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ports.HandoffResult{}, fmt.Errorf("decode backend response: %w", err)
	}
	if result.ProcessingID == "" {
		result.ProcessingID = meta.ProjectID
	}
	return result, nil
}

func writeParts(mw *multipart.Writer, f io.Reader, filename string, meta projectMeta) error {
	metaPart, err := mw.CreateFormField("project")
	if err != nil {
		return err
	}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return err
	}
	filePart, err := mw.CreateFormFile("video", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(filePart, f); err != nil {
		return fmt.Errorf("stream video: %w", err)
	}
	return nil
}
