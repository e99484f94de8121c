package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/campusgate/pkg/accounts"
	"github.com/campusgate/campusgate/pkg/audit"
	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/middleware"
	"github.com/campusgate/campusgate/pkg/observability"
)

// memStore is an in-memory accounts.Store for end-to-end handler tests
type memStore struct {
	byEmail map[string]*accounts.Account
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{byEmail: map[string]*accounts.Account{}, nextID: 1}
}

func (s *memStore) FindByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	if a, ok := s.byEmail[email]; ok {
		found := *a
		return &found, nil
	}
	return nil, accounts.ErrNotFound
}

func (s *memStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *memStore) Create(ctx context.Context, account *accounts.Account) (*accounts.Account, error) {
	if _, ok := s.byEmail[account.Email]; ok {
		return nil, accounts.ErrDuplicate
	}
	stored := *account
	stored.ID = s.nextID
	s.nextID++
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.byEmail[account.Email] = &stored
	result := stored
	return &result, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, email string, status accounts.Status) error {
	a, ok := s.byEmail[email]
	if !ok {
		return accounts.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *memStore) TouchLastLogin(ctx context.Context, email string) error { return nil }

func (s *memStore) List(ctx context.Context) ([]*accounts.Account, error) {
	var all []*accounts.Account
	for _, a := range s.byEmail {
		all = append(all, a)
	}
	return all, nil
}

func (s *memStore) Delete(ctx context.Context, email string) error {
	if _, ok := s.byEmail[email]; !ok {
		return accounts.ErrNotFound
	}
	delete(s.byEmail, email)
	return nil
}

type serverFixture struct {
	server *Server
	store  *memStore
	codec  *auth.Codec
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	codec, err := auth.NewCodec(auth.Secret("0123456789abcdef0123456789abcdef"), "campusgate-test")
	require.NoError(t, err)

	store := newMemStore()
	service := auth.NewService(store, codec, nil, time.Hour, logger)

	policy, err := middleware.NewAccessPolicy(middleware.DefaultRules(), nil, nil, logger)
	require.NoError(t, err)

	server := NewServer(ServerOptions{
		Store:   store,
		Service: service,
		Codec:   codec,
		Audit:   audit.NopLogger{},
		Policy:  policy,
		Logger:  logger,
	})

	return &serverFixture{server: server, store: store, codec: codec}
}

func (f *serverFixture) seed(t *testing.T, email, password string, role accounts.Role, status accounts.Status) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	_, err = f.store.Create(context.Background(), &accounts.Account{
		Email:        email,
		Role:         role,
		Status:       status,
		LoginMethod:  accounts.LoginMethodPassword,
		PasswordHash: &hash,
	})
	require.NoError(t, err)
}

func (f *serverFixture) login(t *testing.T, email, password string) string {
	t.Helper()
	w := f.do(t, "POST", "/auth/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, "login failed: %s", w.Body.String())

	var result struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.1:50000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func TestServer_PasswordLogin(t *testing.T) {
	f := newServerFixture(t)
	f.seed(t, "student@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)

	t.Run("success returns bearer token", func(t *testing.T) {
		w := f.do(t, "POST", "/auth/login", map[string]string{
			"email": "student@uni.edu", "password": "opensesame",
		}, "")
		require.Equal(t, http.StatusOK, w.Code)

		var result auth.LoginResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "Bearer", result.TokenType)

		subject, err := f.codec.Validate(result.Token)
		require.NoError(t, err)
		assert.Equal(t, "student@uni.edu", subject)
	})

	t.Run("unknown email and wrong password return identical responses", func(t *testing.T) {
		unknown := f.do(t, "POST", "/auth/login", map[string]string{
			"email": "ghost@uni.edu", "password": "opensesame",
		}, "")
		wrong := f.do(t, "POST", "/auth/login", map[string]string{
			"email": "student@uni.edu", "password": "nope",
		}, "")

		assert.Equal(t, http.StatusBadRequest, unknown.Code)
		assert.Equal(t, wrong.Code, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("malformed body is a 400", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader([]byte("{not json")))
		req.RemoteAddr = "10.0.0.1:50000"
		w := httptest.NewRecorder()
		f.server.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled account with correct password", func(t *testing.T) {
		f.seed(t, "off@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusInactive)
		w := f.do(t, "POST", "/auth/login", map[string]string{
			"email": "off@uni.edu", "password": "opensesame",
		}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "disabled")
	})
}

type stubVerifier struct {
	identity *auth.ExternalIdentity
	err      error
}

func (v stubVerifier) Verify(ctx context.Context, rawIDToken string) (*auth.ExternalIdentity, error) {
	return v.identity, v.err
}

// captureAudit collects events written through the async audit path
type captureAudit struct {
	mu     sync.Mutex
	events []*audit.Event
	ch     chan audit.EventType
}

func newCaptureAudit() *captureAudit {
	return &captureAudit{ch: make(chan audit.EventType, 16)}
}

func (c *captureAudit) Log(ctx context.Context, event *audit.Event) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.ch <- event.EventType
	return nil
}

func (c *captureAudit) List(ctx context.Context, eventType audit.EventType, limit int) ([]*audit.Event, error) {
	return nil, nil
}

func (c *captureAudit) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (c *captureAudit) countByType(eventType audit.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

// waitFor blocks until every listed event type has arrived, in any order
func (c *captureAudit) waitFor(t *testing.T, want ...audit.EventType) {
	t.Helper()
	pending := map[audit.EventType]bool{}
	for _, w := range want {
		pending[w] = true
	}
	deadline := time.After(2 * time.Second)
	for len(pending) > 0 {
		select {
		case got := <-c.ch:
			delete(pending, got)
		case <-deadline:
			t.Fatalf("audit events never arrived: %v", pending)
		}
	}
}

func TestServer_GoogleProvisioningAudited(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	codec, err := auth.NewCodec(auth.Secret("0123456789abcdef0123456789abcdef"), "campusgate-test")
	require.NoError(t, err)

	store := newMemStore()
	verifier := stubVerifier{identity: &auth.ExternalIdentity{
		Subject: "google-oauth2|42",
		Email:   "applicant@gmail.com",
		Name:    "An Applicant",
	}}
	service := auth.NewService(store, codec, verifier, time.Hour, logger)

	policy, err := middleware.NewAccessPolicy(middleware.DefaultRules(), nil, nil, logger)
	require.NoError(t, err)

	capture := newCaptureAudit()
	server := NewServer(ServerOptions{
		Store:   store,
		Service: service,
		Codec:   codec,
		Audit:   capture,
		Policy:  policy,
		Logger:  logger,
	})
	f := &serverFixture{server: server, store: store, codec: codec}

	w := f.do(t, "POST", "/auth/login/google", map[string]string{"identityToken": "raw"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	account, err := store.FindByEmail(context.Background(), "applicant@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleStudent, account.Role)

	capture.waitFor(t, audit.EventTypeAccountProvisioned, audit.EventTypeGoogleLogin)

	// A repeat login is not a provisioning event.
	w = f.do(t, "POST", "/auth/login/google", map[string]string{"identityToken": "raw"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	capture.waitFor(t, audit.EventTypeGoogleLogin)
	assert.Equal(t, 1, capture.countByType(audit.EventTypeAccountProvisioned))
}

func TestServer_GoogleLoginUnconfigured(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, "POST", "/auth/login/google", map[string]string{"identityToken": "whatever"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid identity token")

	w = f.do(t, "GET", "/auth/google/redirect", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Me(t *testing.T) {
	f := newServerFixture(t)
	f.seed(t, "student@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)

	t.Run("without token gets 401", func(t *testing.T) {
		w := f.do(t, "GET", "/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("with token returns the principal", func(t *testing.T) {
		token := f.login(t, "student@uni.edu", "opensesame")
		w := f.do(t, "GET", "/me", nil, token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "student@uni.edu")
	})

	t.Run("deactivation invalidates a live token", func(t *testing.T) {
		f.seed(t, "leaver@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)
		token := f.login(t, "leaver@uni.edu", "opensesame")

		require.NoError(t, f.store.UpdateStatus(context.Background(), "leaver@uni.edu", accounts.StatusInactive))

		w := f.do(t, "GET", "/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestServer_AccountAdministration(t *testing.T) {
	f := newServerFixture(t)
	f.seed(t, "admin@uni.edu", "admin-pass", accounts.RoleAdmin, accounts.StatusActive)
	f.seed(t, "student@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)

	adminToken := f.login(t, "admin@uni.edu", "admin-pass")
	studentToken := f.login(t, "student@uni.edu", "opensesame")

	t.Run("student is forbidden", func(t *testing.T) {
		w := f.do(t, "GET", "/accounts", nil, studentToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		w := f.do(t, "GET", "/accounts", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin creates a staff account", func(t *testing.T) {
		w := f.do(t, "POST", "/accounts", map[string]string{
			"email": "staff@uni.edu", "displayName": "Staff", "role": "staff", "password": "staff-pass",
		}, adminToken)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		// The stored hash never appears in the response.
		assert.NotContains(t, w.Body.String(), "$2a$")

		// The new account can log in.
		f.login(t, "staff@uni.edu", "staff-pass")
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		w := f.do(t, "POST", "/accounts", map[string]string{
			"email": "student@uni.edu", "role": "student", "password": "whatever1",
		}, adminToken)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("weak password rejected", func(t *testing.T) {
		w := f.do(t, "POST", "/accounts", map[string]string{
			"email": "weak@uni.edu", "role": "student", "password": "short",
		}, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		w := f.do(t, "POST", "/accounts", map[string]string{
			"email": "x@uni.edu", "role": "superuser", "password": "whatever1",
		}, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("status update and delete", func(t *testing.T) {
		w := f.do(t, "PUT", "/accounts/student@uni.edu/status", map[string]string{"status": "inactive"}, adminToken)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = f.do(t, "DELETE", "/accounts/student@uni.edu", nil, adminToken)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = f.do(t, "GET", "/accounts/student@uni.edu", nil, adminToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServer_AuditList(t *testing.T) {
	f := newServerFixture(t)
	f.seed(t, "admin@uni.edu", "admin-pass", accounts.RoleAdmin, accounts.StatusActive)
	f.seed(t, "student@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)

	adminToken := f.login(t, "admin@uni.edu", "admin-pass")
	studentToken := f.login(t, "student@uni.edu", "opensesame")

	t.Run("admin can read the trail", func(t *testing.T) {
		w := f.do(t, "GET", "/audit/events", nil, adminToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]\n", w.Body.String())
	})

	t.Run("student cannot", func(t *testing.T) {
		w := f.do(t, "GET", "/audit/events", nil, studentToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad limit rejected", func(t *testing.T) {
		w := f.do(t, "GET", "/audit/events?limit=bogus", nil, adminToken)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_UnknownRouteFailsClosed(t *testing.T) {
	f := newServerFixture(t)
	f.seed(t, "student@uni.edu", "opensesame", accounts.RoleStudent, accounts.StatusActive)

	t.Run("anonymous gets 401 on unrouted paths", func(t *testing.T) {
		w := f.do(t, "GET", "/totally/new/endpoint", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("authenticated falls through to the router 404", func(t *testing.T) {
		token := f.login(t, "student@uni.edu", "opensesame")
		w := f.do(t, "GET", "/totally/new/endpoint", nil, token)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method mismatch is policed too", func(t *testing.T) {
		w := f.do(t, "POST", "/me", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		token := f.login(t, "student@uni.edu", "opensesame")
		w = f.do(t, "POST", "/me", nil, token)
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("health probe on the api port gets 404 not a challenge", func(t *testing.T) {
		// Health endpoints live on the separate health listener; a probe
		// reaching this port should see a plain 404.
		w := f.do(t, "GET", "/healthz", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
