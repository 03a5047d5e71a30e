package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/guts/internal/auth"
	"github.com/jason-s-yu/guts/internal/game"
)

type noopEmitter struct{}

func (noopEmitter) Broadcast(string, game.Event)          {}
func (noopEmitter) Unicast(string, uuid.UUID, game.Event) {}

func newTestServer(t *testing.T) (*httptest.Server, *game.Registry, *auth.Issuer) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	issuer := auth.NewIssuer([]byte("test-secret"))
	registry := game.NewRegistry(noopEmitter{}, nil, log)

	mux := http.NewServeMux()
	NewServer(registry, issuer, log).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry, issuer
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestCreateRoom(t *testing.T) {
	srv, registry, issuer := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/game/create", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		RoomCode  string `json:"roomCode"`
		HostToken string `json:"hostToken"`
	}
	decodeBody(t, resp, &body)
	assert.Len(t, body.RoomCode, 6)
	require.NotEmpty(t, body.HostToken)

	claims, err := issuer.Verify(body.HostToken)
	require.NoError(t, err)
	assert.Equal(t, body.RoomCode, claims.RoomCode)
	assert.Equal(t, auth.RoleHost, claims.Role)

	_, err = registry.GetRoom(body.RoomCode)
	assert.NoError(t, err)
}

func TestJoinRoom(t *testing.T) {
	srv, _, issuer := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/game/create", nil)
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	decodeBody(t, resp, &created)

	resp = postJSON(t, srv.URL+"/api/game/join", map[string]string{
		"roomCode":   created.RoomCode,
		"playerName": "Alice",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var joined struct {
		PlayerToken string `json:"playerToken"`
		RoomCode    string `json:"roomCode"`
	}
	decodeBody(t, resp, &joined)
	assert.Equal(t, created.RoomCode, joined.RoomCode)

	claims, err := issuer.Verify(joined.PlayerToken)
	require.NoError(t, err)
	assert.Equal(t, created.RoomCode, claims.RoomCode)
	assert.Equal(t, auth.RolePlayer, claims.Role)
}

func TestJoinValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/game/join", map[string]string{"playerName": "Alice"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/game/join", map[string]string{
		"roomCode":   "ZZZZZZ",
		"playerName": "Alice",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/game/create", nil)
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	decodeBody(t, resp, &created)

	resp, err := http.Get(srv.URL + "/api/game/" + created.RoomCode + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		State       string `json:"state"`
		PlayerCount int    `json:"playerCount"`
		Round       int    `json:"round"`
	}
	decodeBody(t, resp, &status)
	assert.Equal(t, "lobby", status.State)
	assert.Equal(t, 0, status.PlayerCount)
	assert.Equal(t, 0, status.Round)

	resp, err = http.Get(srv.URL + "/api/game/ZZZZZZ/status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
}
