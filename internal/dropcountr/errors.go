package dropcountr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrNotLoggedIn is returned by data calls made before a successful Login
	ErrNotLoggedIn = errors.New("must be logged in to call the DropCountr API")

	// ErrInvalidCredentials is wrapped by the AuthError returned for a rejected login
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthError represents an authentication failure
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: API returned status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

const maxErrorBody = 512

// checkResponse turns an error status into an AuthError or APIError
func checkResponse(res *resty.Response) error {
	if res.IsSuccess() {
		return nil
	}

	body := strings.TrimSpace(res.String())
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}

	if res.StatusCode() == http.StatusUnauthorized || res.StatusCode() == http.StatusForbidden {
		return &AuthError{
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("authentication failed (status %d): %s", res.StatusCode(), body),
		}
	}

	return &APIError{
		StatusCode: res.StatusCode(),
		Method:     res.Request.Method,
		URL:        res.Request.URL,
		Body:       body,
	}
}
