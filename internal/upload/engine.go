package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

// Engine drives a resumable upload session against a Google-style endpoint:
// one init call that mints a session URL, then sequential chunk PUTs where
// the server acknowledges progress with 308 + Range. The confirmed offset
// only ever advances on a server acknowledgement, never on a local write.
type Engine struct {
	client  *http.Client
	tokens  ports.TokenProvider
	initURL string
	opts    Options
	log     zerolog.Logger
}

type Options struct {
	// ChunkSize is the per-request payload size. Defaults to 8 MiB and is
	// rounded up to the protocol's 256 KiB granule.
	ChunkSize int64
	// InitTimeout bounds the session-init call only; chunk PUTs use the
	// caller's context.
	InitTimeout time.Duration
	// MaxAttempts is how many times one chunk range is retried before the
	// upload fails. Defaults to 3.
	MaxAttempts int
	// RetryDelay is the base of the linear backoff between attempts.
	RetryDelay time.Duration
}

const uploadGranule = 256 * 1024

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 8 << 20
	}
	if rem := o.ChunkSize % uploadGranule; rem != 0 {
		o.ChunkSize += uploadGranule - rem
	}
	if o.InitTimeout <= 0 {
		o.InitTimeout = 15 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}

func NewEngine(client *http.Client, tokens ports.TokenProvider, initURL string, opts Options, log zerolog.Logger) *Engine {
	if client == nil {
		client = &http.Client{}
	}
	return &Engine{client: client, tokens: tokens, initURL: initURL, opts: opts.withDefaults(), log: log}
}

// Init asks the endpoint for a session URL. A slow init is treated as the
// endpoint being unavailable and reported as ErrUploadInitTimeout so the
// caller can fall back to another delivery path.
func (e *Engine) Init(ctx context.Context, mimeType string, totalBytes int64) (*types.UploadSession, error) {
	initCtx, cancel := context.WithTimeout(ctx, e.opts.InitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(initCtx, http.MethodPost, e.initURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create init request: %w", err)
	}
	token, err := e.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("upload token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Upload-Content-Type", mimeType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(totalBytes, 10))

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(initCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("session init exceeded %s: %w", e.opts.InitTimeout, types.ErrUploadInitTimeout)
		}
		return nil, fmt.Errorf("session init: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("session init status %d: %s", resp.StatusCode, string(body))
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, errors.New("session init: no Location header in response")
	}
	return &types.UploadSession{
		UploadURL:  loc,
		TotalBytes: totalBytes,
		ChunkSize:  e.opts.ChunkSize,
	}, nil
}

// Upload pushes the whole file through a fresh session and returns the
// remote id the endpoint reports on completion.
func (e *Engine) Upload(ctx context.Context, path, mimeType string, onProgress func(confirmed, total int64)) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat upload source: %w", err)
	}
	sess, err := e.Init(ctx, mimeType, info.Size())
	if err != nil {
		return "", err
	}
	return e.Resume(ctx, sess, path, onProgress)
}

// Resume continues a session from its confirmed offset. It is safe to call
// with a session recovered after a crash; pair it with QueryOffset to learn
// how far the server actually got.
func (e *Engine) Resume(ctx context.Context, sess *types.UploadSession, path string, onProgress func(confirmed, total int64)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	for sess.BytesConfirmed < sess.TotalBytes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := sess.BytesConfirmed
		end := start + sess.ChunkSize
		if end > sess.TotalBytes {
			end = sess.TotalBytes
		}

		id, confirmed, err := e.putRange(ctx, sess, f, start, end)
		if err != nil {
			return "", err
		}
		if id != "" {
			sess.BytesConfirmed = sess.TotalBytes
			if onProgress != nil {
				onProgress(sess.BytesConfirmed, sess.TotalBytes)
			}
			return id, nil
		}
		if confirmed < sess.BytesConfirmed {
			return "", fmt.Errorf("server moved confirmed offset backwards: %d -> %d", sess.BytesConfirmed, confirmed)
		}
		sess.BytesConfirmed = confirmed
		if onProgress != nil {
			onProgress(sess.BytesConfirmed, sess.TotalBytes)
		}
	}
	return e.finalize(ctx, sess)
}

// putRange uploads [start, end) with per-range retries. It returns the
// remote id when the server reports the upload complete, otherwise the new
// confirmed offset.
func (e *Engine) putRange(ctx context.Context, sess *types.UploadSession, f *os.File, start, end int64) (string, int64, error) {
	var lastErr error
	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(attempt-1) * e.opts.RetryDelay
			e.log.Warn().
				Int64("offset", start).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("retrying upload chunk")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
		}

		id, confirmed, err := e.putOnce(ctx, sess, f, start, end)
		if err == nil {
			return id, confirmed, nil
		}
		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
		lastErr = err
	}
	return "", 0, &types.UploadChunkError{Offset: start, Attempts: e.opts.MaxAttempts, Err: lastErr}
}

func (e *Engine) putOnce(ctx context.Context, sess *types.UploadSession, f *os.File, start, end int64) (string, int64, error) {
	body := io.NewSectionReader(f, start, end-start)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sess.UploadURL, body)
	if err != nil {
		return "", 0, err
	}
	req.ContentLength = end - start
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, sess.TotalBytes))

	resp, err := e.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		confirmed, err := parseRangeHeader(resp.Header.Get("Range"))
		if err != nil {
			return "", 0, err
		}
		// A 308 that acknowledges nothing new is a failed attempt, not a
		// success; otherwise the same range would be re-sent forever with no
		// backoff and no retry bound.
		if confirmed <= start {
			return "", 0, fmt.Errorf("server acknowledged no progress at offset %d (Range %q)", start, resp.Header.Get("Range"))
		}
		return "", confirmed, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodeUploadID(resp.Body), sess.TotalBytes, nil
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", 0, fmt.Errorf("chunk status %d: %s", resp.StatusCode, string(b))
	}
}

// finalize covers the zero-byte tail case where every byte is confirmed but
// the server has not yet reported completion.
func (e *Engine) finalize(ctx context.Context, sess *types.UploadSession) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sess.UploadURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", sess.TotalBytes))

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("finalize status %d: %s", resp.StatusCode, string(b))
	}
	return decodeUploadID(resp.Body), nil
}

// QueryOffset asks the server how many bytes it has durably stored and
// updates the session accordingly. Returns true when the upload is already
// complete.
func (e *Engine) QueryOffset(ctx context.Context, sess *types.UploadSession) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sess.UploadURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", sess.TotalBytes))

	resp, err := e.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("query offset: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPermanentRedirect:
		confirmed, err := parseRangeHeader(resp.Header.Get("Range"))
		if err != nil {
			return false, err
		}
		sess.BytesConfirmed = confirmed
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		sess.BytesConfirmed = sess.TotalBytes
		return true, nil
	default:
		return false, fmt.Errorf("query offset status %d", resp.StatusCode)
	}
}

// parseRangeHeader reads "bytes=0-N" into the next unconfirmed offset N+1.
// An absent header means the server has stored nothing.
func parseRangeHeader(h string) (int64, error) {
	if h == "" {
		return 0, nil
	}
	v := strings.TrimPrefix(h, "bytes=")
	i := strings.LastIndex(v, "-")
	if i < 0 {
		return 0, fmt.Errorf("malformed Range header %q", h)
	}
	last, err := strconv.ParseInt(v[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed Range header %q: %w", h, err)
	}
	return last + 1, nil
}

func decodeUploadID(r io.Reader) string {
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return ""
	}
	return out.ID
}
