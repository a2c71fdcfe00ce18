package sherlock

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/flintlabsai/sherlock-go/pkg/keys"
)

// Authenticator runs the challenge/response login handshake and owns
// the resulting token pair.
//
// Challenges are single-use and bound to the public key, so at most
// one handshake may be in flight per key: concurrent callers coalesce
// onto a single challenge/login round trip. The cache holds a token
// until it is discarded by ForceRefresh or replaced by Refresh; the
// flow does not gate on expiry — a 401 from the registrar is the
// authoritative staleness signal.
type Authenticator struct {
	key       *keys.KeyPair
	baseURL   string
	transport *transport
	logger    *zap.Logger

	group singleflight.Group

	mu     sync.Mutex
	tokens *tokenPair
}

type tokenPair struct {
	access  AccessToken
	refresh RefreshToken
	// expiresAt is a best-effort hint parsed from the access token's
	// JWT claims. Diagnostics only; never consulted by the flow.
	expiresAt time.Time
}

func newAuthenticator(key *keys.KeyPair, baseURL string, tr *transport, logger *zap.Logger) *Authenticator {
	return &Authenticator{key: key, baseURL: baseURL, transport: tr, logger: logger}
}

// Token returns a usable access token, running the full
// challenge/sign/login handshake only when nothing is cached.
func (a *Authenticator) Token(ctx context.Context) (AccessToken, error) {
	if tok, ok := a.cached(); ok {
		return tok, nil
	}
	return a.handshake(ctx)
}

// ForceRefresh discards the cached token pair and runs a fresh
// handshake. Used when the registrar rejects a cached token.
func (a *Authenticator) ForceRefresh(ctx context.Context) (AccessToken, error) {
	a.mu.Lock()
	a.tokens = nil
	a.mu.Unlock()
	return a.handshake(ctx)
}

// Refresh exchanges the cached refresh token for a new token pair,
// avoiding a challenge/sign round trip. It falls back to the full
// handshake when no refresh token is cached or the grant is rejected.
func (a *Authenticator) Refresh(ctx context.Context) (AccessToken, error) {
	a.mu.Lock()
	var refresh RefreshToken
	if a.tokens != nil {
		refresh = a.tokens.refresh
	}
	a.mu.Unlock()
	if refresh == "" {
		return a.handshake(ctx)
	}

	status, body, err := a.transport.send(ctx, http.MethodPost,
		a.baseURL+"/api/v0/auth/refresh", refreshRequest{Refresh: string(refresh)}, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		a.logger.Debug("refresh grant rejected, falling back to challenge handshake",
			zap.Int("status", status))
		return a.ForceRefresh(ctx)
	}

	pair, err := parseTokenPair(body)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	a.tokens = pair
	a.mu.Unlock()
	return pair.access, nil
}

// ExpiryHint returns the expiry parsed from the cached access token's
// claims, or the zero time when no token is cached or the token is
// opaque. Informational only.
func (a *Authenticator) ExpiryHint() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tokens == nil {
		return time.Time{}
	}
	return a.tokens.expiresAt
}

// cached returns the cached access token without any network activity.
func (a *Authenticator) cached() (AccessToken, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tokens == nil {
		return "", false
	}
	return a.tokens.access, true
}

// handshake coalesces concurrent attempts into one challenge/login
// round trip. The cache is only written on full success, so a
// cancelled or rejected handshake never leaves a partial token behind.
func (a *Authenticator) handshake(ctx context.Context) (AccessToken, error) {
	v, err, _ := a.group.Do("handshake", func() (any, error) {
		pair, err := a.login(ctx)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.tokens = pair
		a.mu.Unlock()
		return pair.access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(AccessToken), nil
}

func (a *Authenticator) login(ctx context.Context) (*tokenPair, error) {
	challenge, err := a.requestChallenge(ctx)
	if err != nil {
		return nil, err
	}

	// Sign the raw challenge string bytes, no framing.
	sig := a.key.Sign([]byte(challenge))

	status, body, err := a.transport.send(ctx, http.MethodPost,
		a.baseURL+"/api/v0/auth/login", loginRequest{
			PublicKey: a.key.PublicKeyHex(),
			Challenge: challenge,
			Signature: hex.EncodeToString(sig),
		}, "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, apiError(ErrAuthenticationRejected, status, body)
	}

	pair, err := parseTokenPair(body)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("authenticated",
		zap.String("public_key", a.key.PublicKeyHex()),
		zap.Time("token_expiry_hint", pair.expiresAt),
	)
	a.transport.metrics.observeHandshake()
	return pair, nil
}

func (a *Authenticator) requestChallenge(ctx context.Context) (string, error) {
	status, body, err := a.transport.send(ctx, http.MethodPost,
		a.baseURL+"/api/v0/auth/challenge",
		challengeRequest{PublicKey: a.key.PublicKeyHex()}, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", apiError(ErrChallengeRequestFailed, status, body)
	}

	var resp challengeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrChallengeRequestFailed, err)
	}
	if resp.Challenge == "" {
		return "", fmt.Errorf("%w: response missing challenge value", ErrChallengeRequestFailed)
	}
	return resp.Challenge, nil
}

func parseTokenPair(body []byte) (*tokenPair, error) {
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrAuthenticationRejected, err)
	}
	if resp.Access == "" {
		return nil, fmt.Errorf("%w: response missing access token", ErrAuthenticationRejected)
	}
	return &tokenPair{
		access:    AccessToken(resp.Access),
		refresh:   RefreshToken(resp.Refresh),
		expiresAt: tokenExpiry(resp.Access),
	}, nil
}

// tokenExpiry extracts the exp claim from a JWT access token without
// verifying it — the registrar signs its own tokens, the client only
// wants a hint. Returns the zero time for opaque tokens.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
