// Package auth keeps the Taiga session alive. Every authenticated request
// goes through three tiers: the current token, a token refresh, and a full
// login with the stored credentials.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/logger"
	"github.com/harrisonrobin/taigo/pkg/metrics"
)

const (
	authPath    = "/auth"
	refreshPath = "/auth/refresh"
)

// Manager owns the session and performs authenticated requests.
type Manager struct {
	store   *cache.Store
	client  *http.Client
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Recorder

	session *Session
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = logger.OrDiscard(l) }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// NewManager creates a Manager persisting its session in store.
func NewManager(store *cache.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		client: &http.Client{Timeout: 30 * time.Second},
		now:    time.Now,
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session returns the current session, or nil before Authenticate or Load.
func (m *Manager) Session() *Session {
	return m.session
}

type authResponse struct {
	AuthToken string `json:"auth_token"`
	Refresh   string `json:"refresh"`
	ID        int    `json:"id"`
}

type errorResponse struct {
	Message string `json:"_error_message"`
	Detail  string `json:"detail"`
}

// Authenticate logs in with creds against the service at baseURL and
// persists the resulting session.
func (m *Manager) Authenticate(ctx context.Context, creds Credentials, baseURL string) (*Session, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	res, err := m.login(ctx, baseURL, creds)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:       newToken(res.AuthToken, res.Refresh, m.now()),
		BaseURL:     baseURL,
		AccountID:   res.ID,
		Credentials: &creds,
	}
	if err := m.save(session); err != nil {
		return nil, err
	}
	m.log.Info("logged in", "account", res.ID, "base_url", baseURL)
	return session, nil
}

// Load restores the persisted session. An expired session is refreshed
// once; if that fails the next request resolves it through the tiers.
func (m *Manager) Load(ctx context.Context) (*Session, error) {
	var session Session
	ok, err := m.store.GetValue(SessionKey, &session)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}
	m.session = &session

	if m.expired() {
		if err := m.refresh(ctx); err != nil {
			m.log.Warn("proactive token refresh failed", "error", err)
		}
	}
	return m.session, nil
}

// SignOut forgets the local session. The remote service is not contacted.
func (m *Manager) SignOut() error {
	m.session = nil
	if err := m.store.Delete(SessionKey); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (m *Manager) expired() bool {
	exp := m.session.Token.Expiry
	return !exp.IsZero() && !m.now().Before(exp)
}

type tier struct {
	name    string
	prepare func(context.Context) error
}

// Do sends an authenticated request for path, relative to the session's
// base URL. body, when not nil, is sent as JSON.
//
// A 401 or 403 moves on to the next tier; each tier runs at most once. Any
// other response is returned as is, and the caller owns its body. A 400
// version conflict on a patch is not an auth failure: re-sending it would
// hide the conflict, so it reaches the caller after one request.
// Transport errors are returned without escalating.
func (m *Manager) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if m.session == nil {
		return nil, ErrNotLoggedIn
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	tiers := []tier{
		{name: metrics.TierToken},
		{name: metrics.TierRefresh, prepare: m.refresh},
		{name: metrics.TierReauth, prepare: m.reauth},
	}

	lastErr := ErrSessionExpired
	for _, t := range tiers {
		if t.prepare != nil {
			if err := t.prepare(ctx); err != nil {
				m.log.Debug("auth tier failed", "tier", t.name, "error", err)
				m.metrics.AuthAttempt(t.name, metrics.OutcomeFailed)
				lastErr = err
				continue
			}
		}

		resp, err := m.send(ctx, method, m.session.BaseURL+path, payload, true)
		if err != nil {
			return nil, err
		}
		if !rejected(resp.StatusCode) {
			m.metrics.AuthAttempt(t.name, metrics.OutcomeOK)
			return resp, nil
		}
		discard(resp)
		m.log.Debug("request rejected", "tier", t.name, "method", method, "path", path, "status", resp.StatusCode)
		m.metrics.AuthAttempt(t.name, metrics.OutcomeRejected)
		lastErr = ErrSessionExpired
	}
	return nil, fmt.Errorf("%w: %s %s: %v", ErrAuth, method, path, lastErr)
}

func rejected(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// refresh exchanges the refresh token for a new pair and persists it.
func (m *Manager) refresh(ctx context.Context) error {
	if m.session.Token.RefreshToken == "" {
		return errors.New("no refresh token")
	}

	req := map[string]string{"refresh": m.session.Token.RefreshToken}
	var res authResponse
	if err := m.post(ctx, m.session.BaseURL+refreshPath, req, &res); err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	updated := *m.session
	updated.Token = newToken(res.AuthToken, res.Refresh, m.now())
	if err := m.save(&updated); err != nil {
		return err
	}
	m.log.Info("token refreshed", "expires", updated.Token.Expiry)
	return nil
}

// reauth logs in again with the stored credentials and persists the result.
func (m *Manager) reauth(ctx context.Context) error {
	creds := m.session.Credentials
	if creds == nil {
		return errors.New("no stored credentials")
	}

	res, err := m.login(ctx, m.session.BaseURL, *creds)
	if err != nil {
		return err
	}

	updated := *m.session
	updated.Token = newToken(res.AuthToken, res.Refresh, m.now())
	updated.AccountID = res.ID
	if err := m.save(&updated); err != nil {
		return err
	}
	m.log.Info("logged in again with stored credentials", "account", res.ID)
	return nil
}

func (m *Manager) login(ctx context.Context, baseURL string, creds Credentials) (*authResponse, error) {
	req := map[string]string{
		"username": creds.Username,
		"password": creds.Password,
		"type":     "normal",
	}
	var res authResponse
	if err := m.post(ctx, baseURL+authPath, req, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if res.AuthToken == "" {
		return nil, fmt.Errorf("%w: response carried no token", ErrAuth)
	}
	return &res, nil
}

// save persists session before it becomes the current one.
func (m *Manager) save(session *Session) error {
	if err := m.store.PutValue(SessionKey, session); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	m.session = session
	return nil
}

// post sends an unauthenticated JSON request and decodes a 2xx reply into out.
func (m *Manager) post(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := m.send(ctx, http.MethodPost, url, payload, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		_ = json.Unmarshal(data, &e)
		msg := e.Message
		if msg == "" {
			msg = e.Detail
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (m *Manager) send(ctx context.Context, method, url string, payload []byte, authorized bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		m.session.Token.SetAuthHeader(req)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s %s: %w", method, url, err)
	}
	return resp, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
