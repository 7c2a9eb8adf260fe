package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apicontext "github.com/dtroode/identity-server/internal/api/context"
	"github.com/dtroode/identity-server/internal/credential"
	"github.com/dtroode/identity-server/internal/events"
	"github.com/dtroode/identity-server/internal/metrics"
	"github.com/dtroode/identity-server/internal/model"
	"github.com/dtroode/identity-server/internal/repository/memory"
	"github.com/dtroode/identity-server/internal/service"
	"github.com/dtroode/identity-server/internal/testutil"
	"github.com/dtroode/identity-server/internal/token"
)

func newTestServer(t *testing.T, ttl time.Duration) *httptest.Server {
	t.Helper()

	lg := testutil.MakeNoopLogger()
	codec, err := credential.NewCodec(credential.AlgorithmBcrypt, bcrypt.MinCost, credential.Argon2Params{})
	require.NoError(t, err)

	identity := service.NewIdentity(
		memory.NewUserRepository(),
		codec,
		service.NewTokenService(token.NewJWT("secret"), ttl, lg),
		events.NopPublisher{},
		lg,
	)

	srv := httptest.NewServer(NewRouter(identity, apicontext.NewManager(), metrics.New(), lg))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, tok string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func register(t *testing.T, baseURL, username, email, password string) model.UserView {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/register", "", registerRequest{
		Username: username, Email: email, Password: password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[model.UserView](t, resp)
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/login", "", loginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeBody[model.Session](t, resp).Token
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody[StatusResponse](t, resp).Status)
}

func TestRouter_RegisterLoginFlow(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)

	alice := register(t, srv.URL, "alice", "alice@example.com", "secret123")
	assert.Equal(t, "alice", alice.Username)
	assert.Equal(t, "alice@example.com", alice.Email)

	resp := doJSON(t, http.MethodPost, srv.URL+"/login", "", loginRequest{Email: "alice@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.NotEmpty(t, raw["token"])
	user, ok := raw["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, alice.ID.String(), user["id"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "PasswordHash")
}

func TestRouter_RegisterErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	register(t, srv.URL, "alice", "alice@example.com", "secret123")

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantKind string
	}{
		{
			name:     "duplicate email",
			body:     registerRequest{Username: "bob", Email: "alice@example.com", Password: "secret123"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_request",
		},
		{
			name:     "duplicate username",
			body:     registerRequest{Username: "alice", Email: "other@example.com", Password: "secret123"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_request",
		},
		{
			name:     "empty password",
			body:     registerRequest{Username: "carol", Email: "carol@example.com"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_request",
		},
		{
			name:     "unknown field",
			body:     map[string]string{"username": "dave", "email": "dave@example.com", "password": "x", "role": "admin"},
			wantCode: http.StatusBadRequest,
			wantKind: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/register", "", tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantKind, decodeBody[ErrorResponse](t, resp).Error)
		})
	}
}

func TestRouter_RegisterMalformedBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	resp, err := http.Post(srv.URL+"/register", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	register(t, srv.URL, "alice", "alice@example.com", "secret123")

	wrongPassword := doJSON(t, http.MethodPost, srv.URL+"/login", "", loginRequest{Email: "alice@example.com", Password: "nope"})
	unknownEmail := doJSON(t, http.MethodPost, srv.URL+"/login", "", loginRequest{Email: "ghost@example.com", Password: "secret123"})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)
	assert.Equal(t, decodeBody[ErrorResponse](t, wrongPassword), decodeBody[ErrorResponse](t, unknownEmail))
}

func TestRouter_UsersRequireToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	alice := register(t, srv.URL, "alice", "alice@example.com", "secret123")

	tests := []struct {
		name     string
		method   string
		path     string
		tok      string
		wantKind string
	}{
		{name: "list without token", method: http.MethodGet, path: "/users", wantKind: "token_malformed"},
		{name: "get without token", method: http.MethodGet, path: "/users/" + alice.ID.String(), wantKind: "token_malformed"},
		{name: "delete without token", method: http.MethodDelete, path: "/users/" + alice.ID.String(), wantKind: "token_malformed"},
		{name: "garbage token", method: http.MethodGet, path: "/users", tok: "garbage", wantKind: "token_malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, tt.method, srv.URL+tt.path, tt.tok, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, tt.wantKind, decodeBody[ErrorResponse](t, resp).Error)
		})
	}
}

func TestRouter_ExpiredToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, -time.Second)
	register(t, srv.URL, "alice", "alice@example.com", "secret123")
	tok := login(t, srv.URL, "alice@example.com", "secret123")

	resp := doJSON(t, http.MethodGet, srv.URL+"/users", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "token_expired", decodeBody[ErrorResponse](t, resp).Error)
}

func TestRouter_GetAndDeleteUser(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	alice := register(t, srv.URL, "alice", "alice@example.com", "secret123")
	bob := register(t, srv.URL, "bob", "bob@example.com", "secret123")
	tok := login(t, srv.URL, "alice@example.com", "secret123")

	resp := doJSON(t, http.MethodGet, srv.URL+"/users/"+bob.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, bob.ID, decodeBody[model.UserView](t, resp).ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/users/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/users/"+bob.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", decodeBody[StatusResponse](t, resp).Status)

	resp = doJSON(t, http.MethodGet, srv.URL+"/users/"+bob.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, resp).Error)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/users/"+bob.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/users/"+alice.ID.String(), tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ListUsers(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	for i := range 15 {
		register(t, srv.URL, fmt.Sprintf("user%02d", i), fmt.Sprintf("user%02d@example.com", i), "secret123")
	}
	tok := login(t, srv.URL, "user00@example.com", "secret123")

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantUsers int
		wantPage  int
		wantSize  int
		wantPages int
	}{
		{name: "defaults", query: "", wantCode: http.StatusOK, wantUsers: 10, wantPage: 1, wantSize: 10, wantPages: 2},
		{name: "second page", query: "?page=2&size=10", wantCode: http.StatusOK, wantUsers: 5, wantPage: 2, wantSize: 10, wantPages: 2},
		{name: "past the end", query: "?page=3&size=10", wantCode: http.StatusOK, wantUsers: 0, wantPage: 3, wantSize: 10, wantPages: 2},
		{name: "page zero clamps to one", query: "?page=0", wantCode: http.StatusOK, wantUsers: 10, wantPage: 1, wantSize: 10, wantPages: 2},
		{name: "size capped", query: "?size=500", wantCode: http.StatusOK, wantUsers: 15, wantPage: 1, wantSize: 100, wantPages: 1},
		{name: "max int page", query: "?page=9223372036854775807", wantCode: http.StatusOK, wantUsers: 0, wantPage: math.MaxInt64, wantSize: 10, wantPages: 2},
		{name: "max int page and size", query: "?page=9223372036854775807&size=9223372036854775807", wantCode: http.StatusOK, wantUsers: 0, wantPage: math.MaxInt64, wantSize: 100, wantPages: 1},
		{name: "page overflows int", query: "?page=9223372036854775808", wantCode: http.StatusBadRequest},
		{name: "non numeric page", query: "?page=abc", wantCode: http.StatusBadRequest},
		{name: "negative size", query: "?size=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, srv.URL+"/users"+tt.query, tok, nil)
			require.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			body := decodeBody[listUsersResponse](t, resp)
			assert.Len(t, body.Users, tt.wantUsers)
			assert.Equal(t, tt.wantPage, body.Pagination.Page)
			assert.Equal(t, tt.wantSize, body.Pagination.Size)
			assert.Equal(t, 15, body.Pagination.Total)
			assert.Equal(t, tt.wantPages, body.Pagination.Pages)
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	doJSON(t, http.MethodGet, srv.URL+"/health", "", nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "identity_requests_total")
}

func TestRouter_ListUsersPastTheEndIsEmptyArray(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, time.Hour)
	register(t, srv.URL, "alice", "alice@example.com", "secret123")
	tok := login(t, srv.URL, "alice@example.com", "secret123")

	resp := doJSON(t, http.MethodGet, srv.URL+"/users?page=9223372036854775807&size=100", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["users"]))
	assert.JSONEq(t, `{"page":9223372036854775807,"size":100,"total":1,"pages":1}`, string(raw["pagination"]))
}
