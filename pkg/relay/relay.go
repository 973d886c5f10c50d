// Package relay implements the stateless HTTP façade over the relay's
// request/response endpoints (C2, spec.md §4.2): register, create/join
// group, fetch group/party info, and health.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/mpcerrors"
	"github.com/mpcparty/core/pkg/version"
	"github.com/mpcparty/core/pkg/wire"
)

// DefaultTimeout bounds every request/response call made through Client.
const DefaultTimeout = 30 * time.Second

// Client is a bearer-token-authenticated façade over the relay's REST
// surface (spec.md §6.1). It is safe for concurrent use; the token is set
// once by Register and read by every subsequent call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Logger

	mu       sync.RWMutex
	token    string
	partyID  wire.PartyId
	hasToken bool
}

// New constructs a Client pointed at baseURL (e.g. "https://relay.example.com").
func New(baseURL string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        log,
	}
}

// NewWithHTTPClient allows swapping in a custom *http.Client (custom
// timeout, TLS config, transport-level retries).
func NewWithHTTPClient(baseURL string, httpClient *http.Client, log logger.Logger) *Client {
	c := New(baseURL, log)
	c.httpClient = httpClient
	return c
}

// BearerToken returns the token stored after a successful Register, and
// whether one has been stored yet.
func (c *Client) BearerToken() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.hasToken
}

type registerRequest struct {
	PartyId wire.PartyId `json:"party_id,omitempty"`
}

type registerResponse struct {
	PartyId wire.PartyId `json:"party_id"`
	Token   string       `json:"token"`
	Message string       `json:"message"`
}

// Register calls POST /party/register, storing the returned token and
// party id for use by every subsequent authenticated call.
func (c *Client) Register(ctx context.Context, partyID wire.PartyId) (wire.PartyId, error) {
	var out registerResponse
	if err := c.call(ctx, http.MethodPost, "/party/register", registerRequest{PartyId: partyID}, "", &out); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = out.Token
	c.hasToken = true
	c.partyID = out.PartyId
	c.mu.Unlock()

	return out.PartyId, nil
}

type createGroupRequest struct {
	GroupId        wire.GroupId `json:"group_id,omitempty"`
	N              int          `json:"n"`
	T              int          `json:"t"`
	TimeoutMinutes int          `json:"timeout_minutes"`
}

type createGroupResponse struct {
	Group   wire.GroupInfo `json:"group"`
	Message string         `json:"message"`
}

// CreateGroup calls POST /group/create (Bearer).
func (c *Client) CreateGroup(ctx context.Context, t, n, timeoutMinutes int) (wire.GroupInfo, error) {
	token, err := c.requireToken()
	if err != nil {
		return wire.GroupInfo{}, err
	}

	req := createGroupRequest{N: n, T: t, TimeoutMinutes: timeoutMinutes}
	var out createGroupResponse
	if err := c.call(ctx, http.MethodPost, "/group/create", req, token, &out); err != nil {
		return wire.GroupInfo{}, err
	}
	return out.Group, nil
}

type joinGroupRequest struct {
	GroupId wire.GroupId `json:"group_id"`
}

type joinGroupResponse struct {
	Message string `json:"message"`
}

// JoinGroup calls POST /group/join (Bearer). Callers must re-fetch group
// info afterward; the join response carries no GroupInfo.
func (c *Client) JoinGroup(ctx context.Context, groupID wire.GroupId) error {
	token, err := c.requireToken()
	if err != nil {
		return err
	}

	var out joinGroupResponse
	return c.call(ctx, http.MethodPost, "/group/join", joinGroupRequest{GroupId: groupID}, token, &out)
}

// GroupInfo calls POST /group/info (Bearer).
func (c *Client) GroupInfo(ctx context.Context, groupID wire.GroupId) (wire.GroupInfo, error) {
	token, err := c.requireToken()
	if err != nil {
		return wire.GroupInfo{}, err
	}

	var out wire.GroupInfo
	if err := c.call(ctx, http.MethodPost, "/group/info", joinGroupRequest{GroupId: groupID}, token, &out); err != nil {
		return wire.GroupInfo{}, err
	}
	return out, nil
}

// PartyInfo is the record returned by GET /party/info.
type PartyInfo struct {
	PartyId   wire.PartyId `json:"party_id"`
	Connected bool         `json:"connected"`
	GroupId   wire.GroupId `json:"group_id,omitempty"`
}

// PartyInfo calls GET /party/info (Bearer).
func (c *Client) PartyInfo(ctx context.Context) (PartyInfo, error) {
	token, err := c.requireToken()
	if err != nil {
		return PartyInfo{}, err
	}

	var out PartyInfo
	if err := c.call(ctx, http.MethodGet, "/party/info", nil, token, &out); err != nil {
		return PartyInfo{}, err
	}
	return out, nil
}

// Health calls GET /health, returning nil on any 2xx response.
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, "", nil)
}

func (c *Client) requireToken() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasToken {
		return "", mpcerrors.New(mpcerrors.Config, "relay client has no bearer token; call Register first")
	}
	return c.token, nil
}

// errorResponse is the relay's non-2xx JSON body shape.
type errorResponse struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

// call performs one request/response cycle: marshal body (if any), attach
// the idempotency key and bearer token, send, and unmarshal into out (if
// non-nil). Network-level failures map to mpcerrors.Network; a non-2xx
// response with a server-provided reason maps to mpcerrors.RelayRejected.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, token string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return mpcerrors.Wrap(mpcerrors.Config, "failed to marshal relay request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.Config, "failed to build relay request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Idempotency-Key", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.Network, fmt.Sprintf("relay request to %s failed", path), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mpcerrors.Wrap(mpcerrors.Network, "failed to read relay response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := string(respBody)
		var parsed errorResponse
		if json.Unmarshal(respBody, &parsed) == nil {
			if parsed.Reason != "" {
				reason = parsed.Reason
			} else if parsed.Error != "" {
				reason = parsed.Error
			}
		}
		c.log.Warn("relay rejected request", logger.String("path", path), logger.Int("status", resp.StatusCode))
		return mpcerrors.New(mpcerrors.RelayRejected, fmt.Sprintf("relay rejected %s (%d): %s", path, resp.StatusCode, reason))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return mpcerrors.Wrap(mpcerrors.Network, "failed to parse relay response", err)
	}
	return nil
}
