package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) (*Server, *httptest.Server, *fakeSessions) {
	t.Helper()
	sessions := &fakeSessions{sendOut: "pong"}
	s := newMethodServer(t, sessions, &fakeTools{})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, sessions
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func authenticate(t *testing.T, conn *websocket.Conn, secret string) {
	t.Helper()

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, "auth.challenge", challenge.Event)

	require.NoError(t, conn.WriteJSON(AuthResponse{
		Method:    "auth.response",
		Signature: sign(secret, challenge.Challenge),
	}))

	var result AuthResult
	require.NoError(t, conn.ReadJSON(&result))
	require.True(t, result.Success, "auth failed: %s", result.Message)
}

func TestWebSocketAuthAndRPC(t *testing.T) {
	_, ts, sessions := newTestGateway(t)
	conn := dialWS(t, ts)

	authenticate(t, conn, "secret")

	require.NoError(t, conn.WriteJSON(RPCRequest{
		ID:      "1",
		Method:  "session.send",
		JSONRPC: "2.0",
		Params:  map[string]interface{}{"tool": "gemini", "command": "ping"},
	}))

	var resp RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.Nil(t, resp.Error, "error: %+v", resp.Error)
	assert.Equal(t, "1", resp.ID)

	result := resp.Result.(map[string]interface{})
	assert.Equal(t, "pong", result["output"])
	assert.Equal(t, "ping", sessions.lastSend)
}

func TestWebSocketRejectsUnauthenticatedRPC(t *testing.T) {
	_, ts, _ := newTestGateway(t)
	conn := dialWS(t, ts)

	// Skip the challenge and go straight to an RPC call.
	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))

	require.NoError(t, conn.WriteJSON(RPCRequest{ID: "1", Method: "session.list", JSONRPC: "2.0"}))

	var resp RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, AuthenticationRequired, resp.Error.Code)
}

func TestWebSocketBadSignature(t *testing.T) {
	_, ts, _ := newTestGateway(t)
	conn := dialWS(t, ts)

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))

	require.NoError(t, conn.WriteJSON(AuthResponse{
		Method:    "auth.response",
		Signature: "not-a-signature",
	}))

	var result AuthResult
	require.NoError(t, conn.ReadJSON(&result))
	assert.False(t, result.Success)
}

func TestHTTPRPCEndpoint(t *testing.T) {
	_, ts, _ := newTestGateway(t)

	body, _ := json.Marshal(RPCRequest{
		ID:      "1",
		Method:  "session.list",
		JSONRPC: "2.0",
	})

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/rpc", bytes.NewReader(body))
	req.Header.Set("X-Toolmux-Secret", "secret")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var resp RPCResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&resp))
	assert.Nil(t, resp.Error)
}

func TestHTTPRPCRejectsBadSecret(t *testing.T) {
	_, ts, _ := newTestGateway(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/rpc", strings.NewReader("{}"))
	req.Header.Set("X-Toolmux-Secret", "wrong")

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	_, ts, _ := newTestGateway(t)

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts, _ := newTestGateway(t)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestBroadcastReachesAuthenticatedClients(t *testing.T) {
	s, ts, _ := newTestGateway(t)
	conn := dialWS(t, ts)
	authenticate(t, conn, "secret")

	s.Broadcast("session.spawned", map[string]interface{}{"tool": "gemini"})

	var event EventMessage
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "session.spawned", event.Event)
	assert.Equal(t, "event", event.Type)
	assert.NotZero(t, event.Seq)
}
