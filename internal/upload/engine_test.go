package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/types"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

// fakeResumableServer mimics a Google-style resumable endpoint: POST mints a
// session, chunk PUTs are acknowledged with 308 + Range, and the final byte
// flips the response to 200 with an id.
type fakeResumableServer struct {
	mu          sync.Mutex
	total       int64
	stored      []byte
	startsSeen  []int64
	failPutOnce bool
	id          string
}

func (s *fakeResumableServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if r.Method == http.MethodPost {
			if got := r.Header.Get("Authorization"); got != "Bearer up-token" {
				t.Errorf("init auth header %q", got)
			}
			n, _ := strconv.ParseInt(r.Header.Get("X-Upload-Content-Length"), 10, 64)
			s.total = n
			w.Header().Set("Location", "http://"+r.Host+"/session/abc")
			w.WriteHeader(http.StatusOK)
			return
		}

		cr := r.Header.Get("Content-Range")
		if strings.HasPrefix(cr, "bytes */") {
			s.respond(w)
			return
		}
		var start, end, total int64
		if _, err := fmt.Sscanf(cr, "bytes %d-%d/%d", &start, &end, &total); err != nil {
			t.Errorf("malformed Content-Range %q", cr)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if start != int64(len(s.stored)) {
			t.Errorf("chunk starts at %d, server has %d bytes", start, len(s.stored))
		}
		s.startsSeen = append(s.startsSeen, start)
		if s.failPutOnce {
			s.failPutOnce = false
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, _ := io.ReadAll(r.Body)
		s.stored = append(s.stored, body...)
		s.respond(w)
	})
}

func (s *fakeResumableServer) respond(w http.ResponseWriter) {
	if int64(len(s.stored)) >= s.total {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"id":%q}`, s.id)
		return
	}
	if len(s.stored) > 0 {
		w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(s.stored)-1))
	}
	w.WriteHeader(http.StatusPermanentRedirect)
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	data := bytes.Repeat([]byte("v"), size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUpload_FullFileInChunks(t *testing.T) {
	t.Parallel()

	const total = 640 * 1024 // 2.5 chunks at the 256 KiB granule
	fake := &fakeResumableServer{id: "vid-1"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("up-token"), srv.URL, Options{
		ChunkSize:  256 * 1024,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	var progress []int64
	id, err := e.Upload(context.Background(), writeTempFile(t, total), "video/mp4", func(confirmed, _ int64) {
		progress = append(progress, confirmed)
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "vid-1" {
		t.Fatalf("unexpected id %q", id)
	}
	if int64(len(fake.stored)) != total {
		t.Fatalf("server stored %d of %d bytes", len(fake.stored), total)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("confirmed offset went backwards: %v", progress)
		}
	}
	if len(progress) == 0 || progress[len(progress)-1] != total {
		t.Fatalf("final confirmed offset %v, want %d", progress, total)
	}
}

func TestUpload_RetriesFailedChunkRange(t *testing.T) {
	t.Parallel()

	const total = 300 * 1024
	fake := &fakeResumableServer{id: "vid-2", failPutOnce: true}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("up-token"), srv.URL, Options{
		ChunkSize:  256 * 1024,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	id, err := e.Upload(context.Background(), writeTempFile(t, total), "video/mp4", nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "vid-2" {
		t.Fatalf("unexpected id %q", id)
	}
	// The failed attempt and its retry target the same range.
	if len(fake.startsSeen) < 2 || fake.startsSeen[0] != 0 || fake.startsSeen[1] != 0 {
		t.Fatalf("expected offset 0 to be retried, got starts %v", fake.startsSeen)
	}
}

func TestUpload_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Location", "http://"+r.Host+"/session/abc")
			return
		}
		puts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("t"), srv.URL, Options{
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
	}, zerolog.Nop())

	_, err := e.Upload(context.Background(), writeTempFile(t, 1024), "video/mp4", nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	var ue *types.UploadChunkError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UploadChunkError, got %v", err)
	}
	if ue.Attempts != 3 || puts != 3 {
		t.Fatalf("attempts=%d puts=%d, want 3", ue.Attempts, puts)
	}
}

func TestUpload_NoProgressAckIsBoundedByRetries(t *testing.T) {
	t.Parallel()

	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Location", "http://"+r.Host+"/session/abc")
			return
		}
		puts++
		_, _ = io.Copy(io.Discard, r.Body)
		// Acknowledge the session but never any of the bytes just sent.
		w.WriteHeader(http.StatusPermanentRedirect)
	}))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("t"), srv.URL, Options{
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
	}, zerolog.Nop())

	_, err := e.Upload(context.Background(), writeTempFile(t, 1024), "video/mp4", nil)
	if err == nil {
		t.Fatalf("expected error when the server never advances the offset")
	}
	var ue *types.UploadChunkError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UploadChunkError, got %v", err)
	}
	if puts != 2 {
		t.Fatalf("no-progress ack must consume retry attempts, got %d PUTs", puts)
	}
}

func TestInit_TimeoutIsClassified(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("t"), srv.URL, Options{
		InitTimeout: 20 * time.Millisecond,
	}, zerolog.Nop())

	_, err := e.Init(context.Background(), "video/mp4", 10)
	if !errors.Is(err, types.ErrUploadInitTimeout) {
		t.Fatalf("expected ErrUploadInitTimeout, got %v", err)
	}
}

func TestResume_ContinuesFromConfirmedOffset(t *testing.T) {
	t.Parallel()

	const total = 512 * 1024
	const already = 256 * 1024
	fake := &fakeResumableServer{id: "vid-3", total: total, stored: bytes.Repeat([]byte("v"), already)}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	e := NewEngine(srv.Client(), staticToken("t"), srv.URL, Options{
		ChunkSize:  256 * 1024,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())

	sess := &types.UploadSession{
		UploadURL:  srv.URL + "/session/abc",
		TotalBytes: total,
		ChunkSize:  256 * 1024,
	}
	done, err := e.QueryOffset(context.Background(), sess)
	if err != nil {
		t.Fatalf("query offset: %v", err)
	}
	if done {
		t.Fatalf("upload reported complete at %d of %d", sess.BytesConfirmed, total)
	}
	if sess.BytesConfirmed != already {
		t.Fatalf("confirmed=%d, want %d", sess.BytesConfirmed, already)
	}

	id, err := e.Resume(context.Background(), sess, writeTempFile(t, total), nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if id != "vid-3" {
		t.Fatalf("unexpected id %q", id)
	}
	// Only the unconfirmed half is re-sent.
	if len(fake.startsSeen) != 1 || fake.startsSeen[0] != already {
		t.Fatalf("expected single PUT at %d, got %v", already, fake.startsSeen)
	}
}

func TestParseRangeHeader(t *testing.T) {
	t.Parallel()

	got, err := parseRangeHeader("bytes=0-12345")
	if err != nil || got != 12346 {
		t.Fatalf("got (%d, %v), want (12346, nil)", got, err)
	}
	got, err = parseRangeHeader("")
	if err != nil || got != 0 {
		t.Fatalf("empty header: got (%d, %v), want (0, nil)", got, err)
	}
	if _, err := parseRangeHeader("bytes=garbage"); err == nil {
		t.Fatalf("expected error for malformed header")
	}
}
