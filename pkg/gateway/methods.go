package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okafor/toolmux/pkg/procman"
	"github.com/okafor/toolmux/pkg/registry"
)

// SessionAPI is the session-manager surface the gateway exposes.
type SessionAPI interface {
	Spawn(ctx context.Context, name, command string, args []string) (procman.SessionInfo, error)
	Status(name string) (procman.SessionInfo, bool)
	Send(ctx context.Context, name, text string) (string, error)
	Terminate(ctx context.Context, name string) error
	List() []procman.SessionInfo
}

// CatalogAPI is the tool-registry surface the gateway exposes.
type CatalogAPI interface {
	ListAll() []registry.ToolConfig
	Get(name string) (registry.ToolConfig, bool)
	FindByCapability(c registry.Capability) []string
	RegisterTool(ctx context.Context, name, displayName, command string, capabilities []string, args []string, cfg registry.StatefulConfig) error
	Disable(ctx context.Context, name string) error
}

// registerBuiltinMethods registers all built-in RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.RegisterMethod("session.spawn", s.handleSessionSpawn)
	_ = s.RegisterMethod("session.status", s.handleSessionStatus)
	_ = s.RegisterMethod("session.send", s.handleSessionSend)
	_ = s.RegisterMethod("session.terminate", s.handleSessionTerminate)
	_ = s.RegisterMethod("session.list", s.handleSessionList)
	_ = s.RegisterMethod("tools.list", s.handleToolsList)
	_ = s.RegisterMethod("tools.find", s.handleToolsFind)
	_ = s.RegisterMethod("tools.register", s.handleToolsRegister)
	_ = s.RegisterMethod("tools.disable", s.handleToolsDisable)
	s.registerBrowserMethods()
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &RPCError{
			Code:    InvalidParams,
			Message: fmt.Sprintf("%s parameter is required and must be a string", key),
		}
	}
	return v, nil
}

func stringSliceParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sendErrorToRPC(err error) *RPCError {
	switch {
	case errors.Is(err, procman.ErrUnknownTool):
		return &RPCError{Code: CodeUnknownTool, Message: err.Error()}
	case errors.Is(err, procman.ErrCommandTimeout):
		return &RPCError{Code: CodeCommandTimeout, Message: err.Error()}
	default:
		return &RPCError{Code: CodeSessionFailed, Message: err.Error()}
	}
}

func (s *Server) handleSessionSpawn(params map[string]interface{}) (interface{}, error) {
	tool, err := stringParam(params, "tool")
	if err != nil {
		return nil, err
	}
	command, _ := params["command"].(string)
	args := stringSliceParam(params, "args")

	info, err := s.sessions.Spawn(context.Background(), tool, command, args)
	if err != nil {
		return nil, sendErrorToRPC(err)
	}

	s.broadcaster.Broadcast("session.spawned", info)
	return info, nil
}

func (s *Server) handleSessionStatus(params map[string]interface{}) (interface{}, error) {
	tool, err := stringParam(params, "tool")
	if err != nil {
		return nil, err
	}

	info, ok := s.sessions.Status(tool)
	if !ok {
		// No live session reads the same as a terminated one.
		return map[string]interface{}{
			"tool":  tool,
			"state": string(procman.StateTerminated),
		}, nil
	}
	return info, nil
}

func (s *Server) handleSessionSend(params map[string]interface{}) (interface{}, error) {
	tool, err := stringParam(params, "tool")
	if err != nil {
		return nil, err
	}
	text, err := stringParam(params, "command")
	if err != nil {
		return nil, err
	}

	output, sendErr := s.sessions.Send(context.Background(), tool, text)
	if sendErr != nil {
		rpcErr := sendErrorToRPC(sendErr)
		// Partial output travels in the error payload.
		if output != "" {
			rpcErr.Data = map[string]interface{}{"output": output}
		}
		return nil, rpcErr
	}

	return map[string]interface{}{"tool": tool, "output": output}, nil
}

func (s *Server) handleSessionTerminate(params map[string]interface{}) (interface{}, error) {
	tool, err := stringParam(params, "tool")
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Terminate(context.Background(), tool); err != nil {
		return nil, sendErrorToRPC(err)
	}

	s.broadcaster.Broadcast("session.terminated", map[string]interface{}{"tool": tool})
	return map[string]interface{}{"tool": tool, "terminated": true}, nil
}

func (s *Server) handleSessionList(params map[string]interface{}) (interface{}, error) {
	return s.sessions.List(), nil
}

func (s *Server) handleToolsList(params map[string]interface{}) (interface{}, error) {
	return s.tools.ListAll(), nil
}

func (s *Server) handleToolsFind(params map[string]interface{}) (interface{}, error) {
	tag, err := stringParam(params, "capability")
	if err != nil {
		return nil, err
	}

	c, perr := registry.ParseCapability(tag)
	if perr != nil {
		return nil, &RPCError{Code: InvalidParams, Message: perr.Error()}
	}

	return map[string]interface{}{
		"capability": string(c),
		"tools":      s.tools.FindByCapability(c),
	}, nil
}

func (s *Server) handleToolsRegister(params map[string]interface{}) (interface{}, error) {
	if err := registry.ValidateRegistration(params); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	name, _ := params["name"].(string)
	displayName, _ := params["display_name"].(string)
	command, _ := params["command"].(string)
	capabilities := stringSliceParam(params, "capabilities")
	args := stringSliceParam(params, "args")

	var cfg registry.StatefulConfig
	if raw, ok := params["config"].(map[string]interface{}); ok {
		cfg.PromptPatterns = stringSliceParam(raw, "prompt_patterns")
		if v, ok := raw["init_timeout"].(float64); ok {
			cfg.InitTimeoutMS = int(v)
		}
		if v, ok := raw["command_timeout"].(float64); ok {
			cfg.CommandTimeoutMS = int(v)
		}
	}

	if err := s.tools.RegisterTool(context.Background(), name, displayName, command, capabilities, args, cfg); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}

	s.broadcaster.Broadcast("tools.registered", map[string]interface{}{"tool": name})
	return map[string]interface{}{"tool": name, "registered": true}, nil
}

func (s *Server) handleToolsDisable(params map[string]interface{}) (interface{}, error) {
	name, err := stringParam(params, "tool")
	if err != nil {
		return nil, err
	}

	if derr := s.tools.Disable(context.Background(), name); derr != nil {
		return nil, &RPCError{Code: InternalError, Message: derr.Error()}
	}

	s.broadcaster.Broadcast("tools.disabled", map[string]interface{}{"tool": name})
	return map[string]interface{}{"tool": name, "disabled": true}, nil
}
