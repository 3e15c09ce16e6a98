package auth

import (
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"casgate/internal/constants"
	"casgate/internal/logger"
)

// fakeDelegateSource serves delegates from memory, keyed both by id hash
// and by realm root.
type fakeDelegateSource struct {
	byIDHash map[string]*Delegate
	roots    map[string]*Delegate
}

func (f *fakeDelegateSource) GetByIDHash(idHashHex string) (*Delegate, error) {
	return f.byIDHash[idHashHex], nil
}

func (f *fakeDelegateSource) GetRootByRealm(realm string) (*Delegate, error) {
	return f.roots[realm], nil
}

type fakeRoleSource struct {
	roles map[string]string
}

func (f *fakeRoleSource) GetRole(subject string) (string, error) {
	if role, ok := f.roles[subject]; ok {
		return role, nil
	}
	return constants.RoleUnauthorized, nil
}

const testBootstrapSecret = "test-bootstrap-secret"

func signBootstrapJWT(t *testing.T, subject string, exp *time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": subject}
	if exp != nil {
		claims["exp"] = exp.Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testBootstrapSecret))
	if err != nil {
		t.Fatalf("failed to sign test JWT: %v", err)
	}
	return signed
}

// issueTestDelegate builds a delegate with a freshly minted access token
// and registers it with the source.
func issueTestDelegate(t *testing.T, src *fakeDelegateSource, realm, id string, mutate func(*Delegate)) (*Delegate, string) {
	t.Helper()

	d := &Delegate{
		DelegateID: id,
		Realm:      realm,
		Chain:      []string{"dlt_ROOT", id},
		Depth:      1,
		CanUpload:  true,
		ScopeRoots: []string{"root_aaa"},
		CreatedAt:  time.Now().UnixMilli(),
	}
	parentID := "dlt_ROOT"
	d.ParentID = &parentID

	atExpiresAt := time.Now().Add(time.Hour).UnixMilli()
	token, err := GenerateToken(TokenOptions{
		IsDelegate: true,
		CanUpload:  true,
		Depth:      d.Depth,
		TTL:        uint64(atExpiresAt),
		IssuerHash: ComputeDelegateIDHash(id),
		RealmHash:  ComputeRealmHash(realm),
		ScopeHash:  ComputeScopeHash(d.ScopeRoots),
	})
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	d.CurrentATHash = HashTokenBytes(token)
	d.ATExpiresAt = atExpiresAt

	if mutate != nil {
		mutate(d)
	}
	src.byIDHash[hex.EncodeToString(ComputeDelegateIDHash(id))] = d
	return d, base64.StdEncoding.EncodeToString(token)
}

func newTestMiddleware(src *fakeDelegateSource, roles *fakeRoleSource) *Middleware {
	return NewMiddleware(src, roles, NewJWTVerifier(testBootstrapSecret), logger.New(logger.LevelError))
}

func TestAuthenticateRejectsMalformedHeaders(t *testing.T) {
	m := newTestMiddleware(
		&fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}},
		&fakeRoleSource{roles: map[string]string{}},
	)

	tests := []struct {
		name   string
		header string
	}{
		{"empty header", ""},
		{"no bearer prefix", "Basic abcdef"},
		{"bearer with empty value", "Bearer "},
		{"not base64", "Bearer %%%not-base64%%%"},
		{"base64 but not a token", "Bearer " + base64.StdEncoding.EncodeToString([]byte("hello"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, authErr := m.Authenticate(tt.header)
			if authErr == nil {
				t.Fatal("expected rejection")
			}
			if authErr.Code != constants.ErrCodeUnauthorized {
				t.Errorf("code = %s, want %s", authErr.Code, constants.ErrCodeUnauthorized)
			}
		})
	}
}

func TestAuthenticateDelegateToken(t *testing.T) {
	src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}}
	m := newTestMiddleware(src, &fakeRoleSource{roles: map[string]string{}})

	d, tokenB64 := issueTestDelegate(t, src, "realm-a", "dlt_GOOD", nil)

	ctx, authErr := m.Authenticate(constants.AuthBearerPrefix + tokenB64)
	if authErr != nil {
		t.Fatalf("valid access token rejected: %v", authErr)
	}
	if ctx.Type != ContextTypeDelegate {
		t.Errorf("context type = %s, want %s", ctx.Type, ContextTypeDelegate)
	}
	if ctx.DelegateID != d.DelegateID || ctx.Realm != "realm-a" {
		t.Errorf("context identity = %s/%s, want %s/realm-a", ctx.Realm, ctx.DelegateID, d.DelegateID)
	}
	if !ctx.CanUpload || ctx.CanManageDepot {
		t.Error("context permissions must mirror the live delegate record")
	}
	if ctx.Depth() != 1 {
		t.Errorf("context depth = %d, want 1", ctx.Depth())
	}
}

func TestAuthenticateDelegateTokenFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Delegate)
		wantCode string
	}{
		{
			name:     "revoked delegate",
			mutate:   func(d *Delegate) { d.IsRevoked = true },
			wantCode: constants.ErrCodeDelegateRevoked,
		},
		{
			name: "expired delegate",
			mutate: func(d *Delegate) {
				past := time.Now().Add(-time.Hour).UnixMilli()
				d.ExpiresAt = &past
			},
			wantCode: constants.ErrCodeDelegateExpired,
		},
		{
			name:     "rotated-away token",
			mutate:   func(d *Delegate) { d.CurrentATHash = HashTokenBytes([]byte("other bytes")) },
			wantCode: constants.ErrCodeTokenInvalid,
		},
		{
			name:     "expired access token",
			mutate:   func(d *Delegate) { d.ATExpiresAt = time.Now().Add(-time.Minute).UnixMilli() },
			wantCode: constants.ErrCodeTokenExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}}
			m := newTestMiddleware(src, &fakeRoleSource{roles: map[string]string{}})
			_, tokenB64 := issueTestDelegate(t, src, "realm-a", "dlt_X", tt.mutate)

			_, authErr := m.Authenticate(constants.AuthBearerPrefix + tokenB64)
			if authErr == nil {
				t.Fatal("expected rejection")
			}
			if authErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", authErr.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthenticateDelegateTokenUnknownIssuer(t *testing.T) {
	src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}}
	m := newTestMiddleware(src, &fakeRoleSource{roles: map[string]string{}})

	token, err := GenerateToken(TokenOptions{
		IsDelegate: true,
		IssuerHash: ComputeDelegateIDHash("dlt_NOBODY"),
		RealmHash:  ComputeRealmHash("realm-a"),
		ScopeHash:  ComputeScopeHash(nil),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, authErr := m.Authenticate(constants.AuthBearerPrefix + base64.StdEncoding.EncodeToString(token))
	if authErr == nil || authErr.Code != constants.ErrCodeDelegateNotFound {
		t.Errorf("got %v, want %s", authErr, constants.ErrCodeDelegateNotFound)
	}
}

func TestAuthenticateBootstrap(t *testing.T) {
	root := &Delegate{
		DelegateID:     "dlt_ROOT",
		Realm:          "owner-1",
		Chain:          []string{"dlt_ROOT"},
		CanUpload:      true,
		CanManageDepot: true,
	}
	src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{"owner-1": root}}
	roles := &fakeRoleSource{roles: map[string]string{"owner-1": constants.RoleAuthorized}}
	m := newTestMiddleware(src, roles)

	future := time.Now().Add(time.Hour)
	ctx, authErr := m.Authenticate(constants.AuthBearerPrefix + signBootstrapJWT(t, "owner-1", &future))
	if authErr != nil {
		t.Fatalf("valid bootstrap credential rejected: %v", authErr)
	}
	if ctx.Type != ContextTypeBootstrap {
		t.Errorf("context type = %s, want %s", ctx.Type, ContextTypeBootstrap)
	}
	if ctx.Realm != "owner-1" || ctx.DelegateID != "dlt_ROOT" {
		t.Errorf("bootstrap context resolved to %s/%s", ctx.Realm, ctx.DelegateID)
	}
	if ctx.Depth() != 0 {
		t.Errorf("bootstrap context depth = %d, want 0", ctx.Depth())
	}
}

func TestAuthenticateBootstrapFailures(t *testing.T) {
	root := &Delegate{DelegateID: "dlt_ROOT", Realm: "owner-1", Chain: []string{"dlt_ROOT"}}
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		bearer   func(t *testing.T) string
		roles    map[string]string
		roots    map[string]*Delegate
		wantCode string
	}{
		{
			name:     "expired credential",
			bearer:   func(t *testing.T) string { return signBootstrapJWT(t, "owner-1", &past) },
			roles:    map[string]string{"owner-1": constants.RoleAuthorized},
			roots:    map[string]*Delegate{"owner-1": root},
			wantCode: constants.ErrCodeTokenExpired,
		},
		{
			name:     "unauthorized subject",
			bearer:   func(t *testing.T) string { return signBootstrapJWT(t, "owner-1", &future) },
			roles:    map[string]string{},
			roots:    map[string]*Delegate{"owner-1": root},
			wantCode: constants.ErrCodeForbidden,
		},
		{
			name:     "no root delegate yet",
			bearer:   func(t *testing.T) string { return signBootstrapJWT(t, "owner-2", &future) },
			roles:    map[string]string{"owner-2": constants.RoleAuthorized},
			roots:    map[string]*Delegate{},
			wantCode: constants.ErrCodeRootDelegateNotFound,
		},
		{
			name: "wrong signature",
			bearer: func(t *testing.T) string {
				signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "owner-1"}).
					SignedString([]byte("wrong-secret"))
				if err != nil {
					t.Fatal(err)
				}
				return signed
			},
			roles:    map[string]string{"owner-1": constants.RoleAuthorized},
			roots:    map[string]*Delegate{"owner-1": root},
			wantCode: constants.ErrCodeUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: tt.roots}
			m := newTestMiddleware(src, &fakeRoleSource{roles: tt.roles})

			_, authErr := m.Authenticate(constants.AuthBearerPrefix + tt.bearer(t))
			if authErr == nil {
				t.Fatal("expected rejection")
			}
			if authErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", authErr.Code, tt.wantCode)
			}
		})
	}
}

func TestProtectWritesWireError(t *testing.T) {
	m := newTestMiddleware(
		&fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}},
		&fakeRoleSource{roles: map[string]string{}},
	)

	handler := m.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a verified context")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/nodes/abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if body := rec.Body.String(); body != "{\"error\":\"UNAUTHORIZED\"}\n" {
		t.Errorf("body = %q, want exact wire error", body)
	}
}

func TestProtectInjectsContext(t *testing.T) {
	src := &fakeDelegateSource{byIDHash: map[string]*Delegate{}, roots: map[string]*Delegate{}}
	m := newTestMiddleware(src, &fakeRoleSource{roles: map[string]string{}})
	d, tokenB64 := issueTestDelegate(t, src, "realm-a", "dlt_CTX", nil)

	var seen *Context
	handler := m.Protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capCtx, ok := FromRequest(r)
		if !ok {
			t.Fatal("FromRequest found no context")
		}
		seen = capCtx
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/nodes/abc", nil)
	req.Header.Set(constants.HeaderAuthorization, constants.AuthBearerPrefix+tokenB64)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if seen == nil || seen.DelegateID != d.DelegateID {
		t.Error("handler did not receive the verified context")
	}
}
