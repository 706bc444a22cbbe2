package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/clipforge/clipforge/internal/types"
)

func tokenEndpoint(t *testing.T, hits *atomic.Int32, delay time.Duration, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func newTestManager(t *testing.T, tokenURL string) (*Manager, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	conf := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	return NewManager(store, conf, zerolog.Nop()), store
}

func TestEnsureValid_FreshTokenSkipsRefresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := tokenEndpoint(t, &hits, 0, http.StatusOK, `{}`)
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	cred := types.Credential{
		UserID:      "u1",
		Provider:    "google",
		AccessToken: "fresh",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := store.Put(context.Background(), cred); err != nil {
		t.Fatal(err)
	}

	got, err := m.EnsureValid(context.Background(), "u1", "google")
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if got.AccessToken != "fresh" {
		t.Fatalf("unexpected token %q", got.AccessToken)
	}
	if hits.Load() != 0 {
		t.Fatalf("token endpoint hit %d times for a fresh token", hits.Load())
	}
}

func TestEnsureValid_RefreshesWithinMargin(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := tokenEndpoint(t, &hits, 0, http.StatusOK,
		`{"access_token":"new-token","token_type":"Bearer","expires_in":3600,"refresh_token":"rt-2"}`)
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	// Expires in 2 minutes: inside the 5 minute margin, so still "stale".
	if err := store.Put(context.Background(), types.Credential{
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "old-token",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := m.EnsureValid(context.Background(), "u1", "google")
	if err != nil {
		t.Fatalf("ensure valid: %v", err)
	}
	if got.AccessToken != "new-token" {
		t.Fatalf("unexpected token %q", got.AccessToken)
	}
	if got.RefreshToken != "rt-2" {
		t.Fatalf("rotated refresh token not kept: %q", got.RefreshToken)
	}
	if hits.Load() != 1 {
		t.Fatalf("token endpoint hit %d times, want 1", hits.Load())
	}

	// The refreshed credential must be durable, not just in memory.
	stored, err := store.Get(context.Background(), "u1", "google")
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.AccessToken != "new-token" {
		t.Fatalf("store kept stale token %q", stored.AccessToken)
	}
}

func TestEnsureValid_InvalidGrantDropsCredential(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := tokenEndpoint(t, &hits, 0, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	if err := store.Put(context.Background(), types.Credential{
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "old",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := m.EnsureValid(context.Background(), "u1", "google")
	if !errors.Is(err, types.ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if _, err := store.Get(context.Background(), "u1", "google"); !errors.Is(err, types.ErrCredentialNotFound) {
		t.Fatalf("revoked credential still stored: %v", err)
	}
}

func TestEnsureValid_NoRefreshTokenIsReauth(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t, "http://unused.invalid")
	if err := store.Put(context.Background(), types.Credential{
		UserID:    "u1",
		Provider:  "google",
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := m.EnsureValid(context.Background(), "u1", "google")
	if !errors.Is(err, types.ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
}

func TestEnsureValid_ConcurrentCallersShareOneRefresh(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := tokenEndpoint(t, &hits, 150*time.Millisecond, http.StatusOK,
		`{"access_token":"shared-token","token_type":"Bearer","expires_in":3600}`)
	defer srv.Close()

	m, store := newTestManager(t, srv.URL)
	if err := store.Put(context.Background(), types.Credential{
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "old",
		RefreshToken: "rt",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := m.EnsureValid(context.Background(), "u1", "google")
			results[i], errs[i] = cred.AccessToken, err
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != "shared-token" {
			t.Fatalf("caller %d got token %q", i, results[i])
		}
	}
	if hits.Load() != 1 {
		t.Fatalf("token endpoint hit %d times, want 1 shared refresh", hits.Load())
	}
}

func TestFileStore_RoundTripAndDelete(t *testing.T) {
	t.Parallel()

	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	ctx := context.Background()

	if _, err := store.Get(ctx, "u1", "google"); !errors.Is(err, types.ErrCredentialNotFound) {
		t.Fatalf("expected not-found on empty store, got %v", err)
	}

	cred := types.Credential{UserID: "u1", Provider: "google", AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UTC()}
	if err := store.Put(ctx, cred); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "u1", "google")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	cred.AccessToken = "b"
	if err := store.Put(ctx, cred); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = store.Get(ctx, "u1", "google")
	if got.AccessToken != "b" {
		t.Fatalf("overwrite not applied: %+v", got)
	}

	if err := store.Delete(ctx, "u1", "google"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "u1", "google"); !errors.Is(err, types.ErrCredentialNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}
