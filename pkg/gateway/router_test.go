package gateway

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	r := NewRPCRouter()

	req, err := r.ParseRequest([]byte(`{"id":"1","method":"session.list","jsonrpc":"2.0"}`))
	require.NoError(t, err)
	assert.Equal(t, "1", req.ID)
	assert.Equal(t, "session.list", req.Method)

	// Version defaults when omitted.
	req, err = r.ParseRequest([]byte(`{"id":"2","method":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "2.0", req.JSONRPC)
}

func TestParseRequestErrors(t *testing.T) {
	r := NewRPCRouter()

	_, err := r.ParseRequest([]byte(`{not json`))
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ParseError, rpcErr.Code)

	_, err = r.ParseRequest([]byte(`{"method":"x"}`))
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidRequest, rpcErr.Code)

	_, err = r.ParseRequest([]byte(`{"id":"1"}`))
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, InvalidRequest, rpcErr.Code)
}

func TestRouteRequest(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("echo", func(params map[string]interface{}) (interface{}, error) {
		return params["msg"], nil
	}))

	resp := r.RouteRequest(&RPCRequest{ID: "1", Method: "echo", Params: map[string]interface{}{"msg": "hi"}})
	require.Nil(t, resp.Error)
	assert.Equal(t, "hi", resp.Result)
	assert.Equal(t, "1", resp.ID)
}

func TestRouteRequestMethodNotFound(t *testing.T) {
	r := NewRPCRouter()

	resp := r.RouteRequest(&RPCRequest{ID: "1", Method: "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouteRequestHandlerErrors(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("plain", func(map[string]interface{}) (interface{}, error) {
		return nil, fmt.Errorf("boom")
	}))
	require.NoError(t, r.RegisterMethod("typed", func(map[string]interface{}) (interface{}, error) {
		return nil, &RPCError{Code: CodeUnknownTool, Message: "unknown tool: x"}
	}))

	resp := r.RouteRequest(&RPCRequest{ID: "1", Method: "plain"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)

	// A handler returning *RPCError keeps its code.
	resp = r.RouteRequest(&RPCRequest{ID: "2", Method: "typed"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnknownTool, resp.Error.Code)
}

func TestRouteRequestIdempotency(t *testing.T) {
	r := NewRPCRouter()
	calls := 0
	require.NoError(t, r.RegisterMethod("count", func(map[string]interface{}) (interface{}, error) {
		calls++
		return calls, nil
	}))

	first := r.RouteRequest(&RPCRequest{ID: "1", Method: "count", IdempotencyKey: "k"})
	second := r.RouteRequest(&RPCRequest{ID: "2", Method: "count", IdempotencyKey: "k"})

	assert.Equal(t, 1, calls, "retried delivery must not re-execute")
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, "2", second.ID, "cached response takes the new request id")

	// No key means no caching.
	r.RouteRequest(&RPCRequest{ID: "3", Method: "count"})
	assert.Equal(t, 2, calls)
}

func TestHasMethodAndMethods(t *testing.T) {
	r := NewRPCRouter()
	require.NoError(t, r.RegisterMethod("a", func(map[string]interface{}) (interface{}, error) { return nil, nil }))

	assert.True(t, r.HasMethod("a"))
	assert.False(t, r.HasMethod("b"))
	assert.Equal(t, []string{"a"}, r.Methods())

	assert.Error(t, r.RegisterMethod("nil", nil))
}
