package gateway

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/okafor/toolmux/pkg/browser"
)

// BrowserAPI is the headless-browser surface the gateway exposes. It is
// optional; without one the browser.* methods are not registered.
type BrowserAPI interface {
	Navigate(ctx context.Context, url string) (*browser.NavigateResult, error)
	Content(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Eval(ctx context.Context, js string) (interface{}, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Running() bool
}

func (s *Server) registerBrowserMethods() {
	if s.browser == nil {
		return
	}
	_ = s.RegisterMethod("browser.navigate", s.handleBrowserNavigate)
	_ = s.RegisterMethod("browser.content", s.handleBrowserContent)
	_ = s.RegisterMethod("browser.click", s.handleBrowserClick)
	_ = s.RegisterMethod("browser.type", s.handleBrowserType)
	_ = s.RegisterMethod("browser.eval", s.handleBrowserEval)
	_ = s.RegisterMethod("browser.screenshot", s.handleBrowserScreenshot)
	_ = s.RegisterMethod("browser.status", s.handleBrowserStatus)
}

// browserErrorToRPC maps browser failures onto RPC codes: policy and
// input problems are the caller's fault, everything else is the
// browser's.
func browserErrorToRPC(err error) *RPCError {
	var berr *browser.BrowserError
	if errors.As(err, &berr) {
		switch berr.Code {
		case browser.ErrCodeValidation, browser.ErrCodeSecurity:
			return &RPCError{Code: InvalidParams, Message: berr.Message}
		}
	}
	return &RPCError{Code: CodeBrowserFailed, Message: err.Error()}
}

func (s *Server) handleBrowserNavigate(params map[string]interface{}) (interface{}, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}

	result, navErr := s.browser.Navigate(context.Background(), url)
	if navErr != nil {
		return nil, browserErrorToRPC(navErr)
	}
	return map[string]interface{}{
		"url":   result.URL,
		"title": result.Title,
	}, nil
}

func (s *Server) handleBrowserContent(params map[string]interface{}) (interface{}, error) {
	content, err := s.browser.Content(context.Background())
	if err != nil {
		return nil, browserErrorToRPC(err)
	}
	return map[string]interface{}{"content": content}, nil
}

func (s *Server) handleBrowserClick(params map[string]interface{}) (interface{}, error) {
	selector, err := stringParam(params, "selector")
	if err != nil {
		return nil, err
	}

	if clickErr := s.browser.Click(context.Background(), selector); clickErr != nil {
		return nil, browserErrorToRPC(clickErr)
	}
	return map[string]interface{}{"clicked": true}, nil
}

func (s *Server) handleBrowserType(params map[string]interface{}) (interface{}, error) {
	selector, err := stringParam(params, "selector")
	if err != nil {
		return nil, err
	}
	text, ok := params["text"].(string)
	if !ok {
		return nil, &RPCError{Code: InvalidParams, Message: "text parameter is required and must be a string"}
	}

	if typeErr := s.browser.Type(context.Background(), selector, text); typeErr != nil {
		return nil, browserErrorToRPC(typeErr)
	}
	return map[string]interface{}{"typed": true}, nil
}

func (s *Server) handleBrowserEval(params map[string]interface{}) (interface{}, error) {
	script, err := stringParam(params, "script")
	if err != nil {
		return nil, err
	}

	value, evalErr := s.browser.Eval(context.Background(), script)
	if evalErr != nil {
		return nil, browserErrorToRPC(evalErr)
	}
	return map[string]interface{}{"value": value}, nil
}

func (s *Server) handleBrowserScreenshot(params map[string]interface{}) (interface{}, error) {
	fullPage, _ := params["full_page"].(bool)

	data, shotErr := s.browser.Screenshot(context.Background(), fullPage)
	if shotErr != nil {
		return nil, browserErrorToRPC(shotErr)
	}
	return map[string]interface{}{
		"format": "png",
		"data":   base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (s *Server) handleBrowserStatus(params map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"running": s.browser.Running()}, nil
}
