package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/wire"
)

func TestRegisterStoresToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(registerResponse{
			PartyId: "02aa", Token: "tok-123", Message: "ok",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, logger.NewDefaultLogger())
	id, err := c.Register(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, wire.PartyId("02aa"), id)

	token, ok := c.BearerToken()
	assert.True(t, ok)
	assert.Equal(t, "tok-123", token)
}

func TestAuthenticatedCallsRequireTokenFirst(t *testing.T) {
	c := New("http://unused.invalid", logger.NewDefaultLogger())
	_, err := c.CreateGroup(t.Context(), 2, 3, 30)
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.Config, kind)
}

func TestCreateGroupAttachesBearerToken(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(registerResponse{PartyId: "02aa", Token: "tok-123"})
	})
	mux.HandleFunc("/group/create", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(createGroupResponse{
			Group: wire.GroupInfo{GroupId: "g1", N: 3, T: 2},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, logger.NewDefaultLogger())
	_, err := c.Register(t.Context(), "")
	require.NoError(t, err)

	info, err := c.CreateGroup(t.Context(), 2, 3, 30)
	require.NoError(t, err)
	assert.Equal(t, wire.GroupId("g1"), info.GroupId)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNonTwoxxMapsToRelayRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(registerResponse{PartyId: "02aa", Token: "tok"})
	})
	mux.HandleFunc("/group/join", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(errorResponse{Reason: "group full"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, logger.NewDefaultLogger())
	_, err := c.Register(t.Context(), "")
	require.NoError(t, err)

	err = c.JoinGroup(t.Context(), "g1")
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.RelayRejected, kind)
	assert.Contains(t, err.Error(), "group full")
}

func TestUnreachableHostMapsToNetwork(t *testing.T) {
	c := New("http://127.0.0.1:1", logger.NewDefaultLogger())
	err := c.Health(t.Context())
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.Network, kind)
}

func TestHealthSucceedsOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, logger.NewDefaultLogger())
	assert.NoError(t, c.Health(t.Context()))
}

func TestEveryCallCarriesIdempotencyKey(t *testing.T) {
	seen := map[string]bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("X-Idempotency-Key")] = true
		_ = json.NewEncoder(w).Encode(registerResponse{PartyId: "02aa", Token: "tok"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, logger.NewDefaultLogger())
	_, err := c.Register(t.Context(), "")
	require.NoError(t, err)
	_, err = c.Register(t.Context(), "")
	require.NoError(t, err)

	assert.Len(t, seen, 2, "each request must carry a distinct idempotency key")
}
