package gateway

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okafor/toolmux/pkg/procman"
	"github.com/okafor/toolmux/pkg/registry"
)

type fakeSessions struct {
	spawned    []string
	terminated []string
	statuses   map[string]procman.SessionInfo
	sendOut    string
	sendErr    error
	lastSend   string
}

func (f *fakeSessions) Spawn(ctx context.Context, name, command string, args []string) (procman.SessionInfo, error) {
	f.spawned = append(f.spawned, name)
	return procman.SessionInfo{Tool: name, State: procman.StateInitializing, PID: 99}, nil
}

func (f *fakeSessions) Status(name string) (procman.SessionInfo, bool) {
	info, ok := f.statuses[name]
	return info, ok
}

func (f *fakeSessions) Send(ctx context.Context, name, text string) (string, error) {
	f.lastSend = text
	return f.sendOut, f.sendErr
}

func (f *fakeSessions) Terminate(ctx context.Context, name string) error {
	f.terminated = append(f.terminated, name)
	return nil
}

func (f *fakeSessions) List() []procman.SessionInfo {
	out := make([]procman.SessionInfo, 0, len(f.statuses))
	for _, info := range f.statuses {
		out = append(out, info)
	}
	return out
}

type fakeTools struct {
	registered []string
	disabled   []string
	tools      map[string]registry.ToolConfig
}

func (f *fakeTools) ListAll() []registry.ToolConfig {
	out := make([]registry.ToolConfig, 0, len(f.tools))
	for _, tc := range f.tools {
		out = append(out, tc)
	}
	return out
}

func (f *fakeTools) Get(name string) (registry.ToolConfig, bool) {
	tc, ok := f.tools[name]
	return tc, ok
}

func (f *fakeTools) FindByCapability(c registry.Capability) []string {
	var names []string
	for name, tc := range f.tools {
		if registry.HasCapability(tc.Capabilities, c) {
			names = append(names, name)
		}
	}
	return names
}

func (f *fakeTools) RegisterTool(ctx context.Context, name, displayName, command string, capabilities []string, args []string, cfg registry.StatefulConfig) error {
	f.registered = append(f.registered, name)
	return nil
}

func (f *fakeTools) Disable(ctx context.Context, name string) error {
	f.disabled = append(f.disabled, name)
	return nil
}

func newMethodServer(t *testing.T, sessions *fakeSessions, tools *fakeTools) *Server {
	t.Helper()
	if sessions == nil {
		sessions = &fakeSessions{}
	}
	if tools == nil {
		tools = &fakeTools{}
	}
	s, err := NewServer(Config{
		Port:         18080,
		SharedSecret: "secret",
		Sessions:     sessions,
		Tools:        tools,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return s
}

func TestHandleSessionSpawn(t *testing.T) {
	sessions := &fakeSessions{}
	s := newMethodServer(t, sessions, nil)

	result, err := s.handleSessionSpawn(map[string]interface{}{"tool": "gemini"})
	require.NoError(t, err)

	info := result.(procman.SessionInfo)
	assert.Equal(t, "gemini", info.Tool)
	assert.Equal(t, procman.StateInitializing, info.State)
	assert.Equal(t, []string{"gemini"}, sessions.spawned)
}

func TestHandleSessionSpawnMissingTool(t *testing.T) {
	s := newMethodServer(t, nil, nil)

	_, err := s.handleSessionSpawn(map[string]interface{}{})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidParams, rpcErr.Code)
}

func TestHandleSessionStatusAbsentReportsTerminated(t *testing.T) {
	s := newMethodServer(t, &fakeSessions{statuses: map[string]procman.SessionInfo{}}, nil)

	result, err := s.handleSessionStatus(map[string]interface{}{"tool": "ghost"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, string(procman.StateTerminated), m["state"])
}

func TestHandleSessionSend(t *testing.T) {
	sessions := &fakeSessions{sendOut: "result line"}
	s := newMethodServer(t, sessions, nil)

	result, err := s.handleSessionSend(map[string]interface{}{"tool": "gemini", "command": "do it"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, "result line", m["output"])
	assert.Equal(t, "do it", sessions.lastSend)
}

func TestHandleSessionSendErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{procman.ErrUnknownTool, CodeUnknownTool},
		{procman.ErrCommandTimeout, CodeCommandTimeout},
		{assert.AnError, CodeSessionFailed},
	}

	for _, tc := range cases {
		s := newMethodServer(t, &fakeSessions{sendErr: tc.err}, nil)
		_, err := s.handleSessionSend(map[string]interface{}{"tool": "gemini", "command": "x"})
		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, tc.code, rpcErr.Code)
	}
}

func TestHandleSessionTerminate(t *testing.T) {
	sessions := &fakeSessions{}
	s := newMethodServer(t, sessions, nil)

	result, err := s.handleSessionTerminate(map[string]interface{}{"tool": "gemini"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, true, m["terminated"])
	assert.Equal(t, []string{"gemini"}, sessions.terminated)
}

func TestHandleToolsFind(t *testing.T) {
	tools := &fakeTools{tools: map[string]registry.ToolConfig{
		"pytest": {Name: "pytest", Capabilities: []registry.Capability{registry.CapTesting}},
	}}
	s := newMethodServer(t, nil, tools)

	result, err := s.handleToolsFind(map[string]interface{}{"capability": "testing"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, []string{"pytest"}, m["tools"])

	_, err = s.handleToolsFind(map[string]interface{}{"capability": "sorcery"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidParams, rpcErr.Code)
}

func TestHandleToolsRegister(t *testing.T) {
	tools := &fakeTools{}
	s := newMethodServer(t, nil, tools)

	_, err := s.handleToolsRegister(map[string]interface{}{
		"name":         "new-tool",
		"command":      "new-tool-bin",
		"capabilities": []interface{}{"testing"},
		"config": map[string]interface{}{
			"prompt_patterns": []interface{}{"> "},
			"command_timeout": float64(5000),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-tool"}, tools.registered)
}

func TestHandleToolsRegisterRejectsBadPayload(t *testing.T) {
	s := newMethodServer(t, nil, &fakeTools{})

	_, err := s.handleToolsRegister(map[string]interface{}{"name": "x"})
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidParams, rpcErr.Code)

	_, err = s.handleToolsRegister(map[string]interface{}{
		"name":    "x",
		"command": "x",
		"bogus":   true,
	})
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidParams, rpcErr.Code)
}

func TestHandleToolsDisable(t *testing.T) {
	tools := &fakeTools{}
	s := newMethodServer(t, nil, tools)

	result, err := s.handleToolsDisable(map[string]interface{}{"tool": "old"})
	require.NoError(t, err)

	m := result.(map[string]interface{})
	assert.Equal(t, true, m["disabled"])
	assert.Equal(t, []string{"old"}, tools.disabled)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{Port: 0, SharedSecret: "s", Sessions: &fakeSessions{}, Tools: &fakeTools{}})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 1, SharedSecret: "", Sessions: &fakeSessions{}, Tools: &fakeTools{}})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 1, SharedSecret: "s", Tools: &fakeTools{}})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: 1, SharedSecret: "s", Sessions: &fakeSessions{}})
	assert.Error(t, err)
}
