package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/clipforge/clipforge/internal/ports"
	"github.com/clipforge/clipforge/internal/types"
)

// refreshMargin is how long before expiry a token is treated as stale. A
// token that expires mid-upload is worse than an early refresh.
const refreshMargin = 5 * time.Minute

// Manager hands out access tokens that are guaranteed fresh for at least the
// refresh margin, refreshing through the provider's token endpoint when they
// are not. Concurrent requests for the same user/provider pair share one
// refresh call.
type Manager struct {
	store  ports.CredentialStore
	conf   *oauth2.Config
	margin time.Duration
	group  singleflight.Group
	now    func() time.Time
	log    zerolog.Logger
}

func NewManager(store ports.CredentialStore, conf *oauth2.Config, log zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		conf:   conf,
		margin: refreshMargin,
		now:    time.Now,
		log:    log,
	}
}

// EnsureValid returns a credential usable for at least the refresh margin,
// refreshing the stored one if needed.
func (m *Manager) EnsureValid(ctx context.Context, userID, provider string) (types.Credential, error) {
	cred, err := m.store.Get(ctx, userID, provider)
	if err != nil {
		return types.Credential{}, err
	}
	if cred.FreshFor(m.now(), m.margin) {
		return cred, nil
	}
	return m.refresh(ctx, cred)
}

// HandleExpired refreshes regardless of the recorded expiry. Use it when the
// provider rejected a token the store still considered fresh.
func (m *Manager) HandleExpired(ctx context.Context, userID, provider string) (types.Credential, error) {
	cred, err := m.store.Get(ctx, userID, provider)
	if err != nil {
		return types.Credential{}, err
	}
	return m.refresh(ctx, cred)
}

func (m *Manager) refresh(ctx context.Context, cred types.Credential) (types.Credential, error) {
	if cred.RefreshToken == "" {
		return types.Credential{}, fmt.Errorf("%s/%s has no refresh token: %w",
			cred.UserID, cred.Provider, types.ErrReauthRequired)
	}

	key := cred.UserID + "/" + cred.Provider
	v, err, shared := m.group.Do(key, func() (any, error) {
		tok, err := m.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
				// The refresh token itself was revoked or rotated away.
				// Keeping the record would just repeat this failure.
				if delErr := m.store.Delete(ctx, cred.UserID, cred.Provider); delErr != nil {
					m.log.Warn().Err(delErr).Str("user", cred.UserID).Msg("drop revoked credential")
				}
				return nil, fmt.Errorf("refresh rejected for %s/%s: %w",
					cred.UserID, cred.Provider, types.ErrReauthRequired)
			}
			return nil, fmt.Errorf("refresh token for %s/%s: %w", cred.UserID, cred.Provider, err)
		}

		updated := cred
		updated.AccessToken = tok.AccessToken
		updated.ExpiresAt = tok.Expiry
		if tok.RefreshToken != "" {
			updated.RefreshToken = tok.RefreshToken
		}
		if err := m.store.Put(ctx, updated); err != nil {
			return nil, fmt.Errorf("persist refreshed credential: %w", err)
		}
		m.log.Debug().
			Str("user", cred.UserID).
			Str("provider", cred.Provider).
			Time("expires_at", updated.ExpiresAt).
			Msg("access token refreshed")
		return updated, nil
	})
	if err != nil {
		return types.Credential{}, err
	}
	if shared {
		m.log.Debug().Str("key", key).Msg("refresh shared with concurrent caller")
	}
	return v.(types.Credential), nil
}

// Provider binds the manager to one user/provider pair as a token source.
func (m *Manager) Provider(userID, provider string) ports.TokenProvider {
	return tokenProvider{m: m, userID: userID, provider: provider}
}

type tokenProvider struct {
	m        *Manager
	userID   string
	provider string
}

func (p tokenProvider) Token(ctx context.Context) (string, error) {
	cred, err := p.m.EnsureValid(ctx, p.userID, p.provider)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Static is a fixed API key used where no OAuth flow applies.
type Static string

func (s Static) Token(context.Context) (string, error) { return string(s), nil }
