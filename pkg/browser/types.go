package browser

import "fmt"

// Config controls how the headless browser is launched. The zero value
// is a sandboxed headless Chrome with rod's bundled binary resolution.
type Config struct {
	Headless    bool
	NoSandbox   bool
	ChromePath  string
	UserDataDir string
	Security    Policy
}

// Policy is the URL security policy applied before every navigation.
type Policy struct {
	AllowFileURLs      bool
	AllowLocalhostURLs bool
	AllowedDomains     []string
	BlockedDomains     []string
}

// NavigateResult reports the outcome of a navigation.
type NavigateResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Error codes for BrowserError.
const (
	ErrCodeValidation    = "validation"
	ErrCodeSecurity      = "security"
	ErrCodeCrash         = "browser_crash"
	ErrCodeTimeout       = "timeout"
	ErrCodeConfiguration = "configuration"
)

// BrowserError is the package's structured error type.
type BrowserError struct {
	Code    string
	Message string
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
