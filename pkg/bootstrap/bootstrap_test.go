// Copyright (c) 2026 The mpcparty Authors.
// Use of this source code is governed by the MIT license found in the
// LICENSE file at the root of this repository.

package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/relay"
	"github.com/mpcparty/core/pkg/wire"
)

func TestBuildThenParseRoundTrip(t *testing.T) {
	tokenJSON, key, err := Build(wire.TokenKeygen, "g1", 2, 3, BuildOptions{})
	require.NoError(t, err)
	assert.Len(t, key, 32)

	token, parsedKey, err := Parse(tokenJSON, time.Now())
	require.NoError(t, err)
	assert.Equal(t, wire.GroupId("g1"), token.GroupId)
	assert.Equal(t, key, parsedKey)
}

func TestSignTokenRequiresMessageHash(t *testing.T) {
	_, _, err := Build(wire.TokenSign, "g1", 2, 3, BuildOptions{})
	require.Error(t, err)

	_, _, err = Build(wire.TokenSign, "g1", 2, 3, BuildOptions{MessageHash: "abcd"})
	require.NoError(t, err)
}

func TestParseRejectsTokenOlderThan24h(t *testing.T) {
	tokenJSON, _, err := Build(wire.TokenKeygen, "g1", 2, 3, BuildOptions{})
	require.NoError(t, err)

	_, _, err = Parse(tokenJSON, time.Now().Add(25*time.Hour))
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.Expired, kind)
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, _, err := Parse("not json", time.Now())
	require.Error(t, err)
}

func TestBootstrapRejectsTokenOlderThan2m(t *testing.T) {
	tokenJSON, _, err := Build(wire.TokenKeygen, "g1", 2, 3, BuildOptions{})
	require.NoError(t, err)

	c := relay.New("http://unused.invalid", logger.NewDefaultLogger())
	_, err = Bootstrap(t.Context(), c, tokenJSON, time.Now().Add(3*time.Minute))
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.Expired, kind)
}

func TestBootstrapFailsOnGroupMismatch(t *testing.T) {
	tokenJSON, _, err := Build(wire.TokenKeygen, "g1", 2, 3, BuildOptions{})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"party_id": "02aa", "token": "tok"})
	})
	mux.HandleFunc("/group/join", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})
	mux.HandleFunc("/group/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wire.GroupInfo{GroupId: "g1", N: 5, T: 3})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := relay.New(srv.URL, logger.NewDefaultLogger())
	_, err = c.Register(t.Context(), "")
	require.NoError(t, err)

	_, err = Bootstrap(t.Context(), c, tokenJSON, time.Now())
	require.Error(t, err)
	kind, ok := mpcerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, mpcerrors.GroupMismatch, kind)
}

func TestBootstrapSucceedsOnMatchingParameters(t *testing.T) {
	tokenJSON, key, err := Build(wire.TokenKeygen, "g1", 2, 3, BuildOptions{})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/party/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"party_id": "02aa", "token": "tok"})
	})
	mux.HandleFunc("/group/join", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})
	mux.HandleFunc("/group/info", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wire.GroupInfo{GroupId: "g1", N: 3, T: 2})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := relay.New(srv.URL, logger.NewDefaultLogger())
	_, err = c.Register(t.Context(), "")
	require.NoError(t, err)

	parsed, err := Bootstrap(t.Context(), c, tokenJSON, time.Now())
	require.NoError(t, err)
	assert.Equal(t, key, parsed.Key)
	assert.Equal(t, 3, parsed.Group.N)
}
