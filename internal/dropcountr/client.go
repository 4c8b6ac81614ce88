package dropcountr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the DropCountr web app
	DefaultBaseURL = "https://dropcountr.com"

	// SessionCookie is the cookie the server issues on login
	SessionCookie = "rack.session"

	apiAccept = "application/vnd.dropcountr.api+json;version=2"
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"
)

// Client talks to the DropCountr API on behalf of one account.
// It owns the session cookie and is not safe for concurrent use.
type Client struct {
	http     *resty.Client
	baseURL  *url.URL
	loc      *time.Location
	logger   *logrus.Logger
	limiter  *rate.Limiter
	loggedIn bool
}

type settings struct {
	baseURL string
	loc     *time.Location
	logger  *logrus.Logger
	timeout time.Duration
	limit   rate.Limit
	burst   int
	debug   bool
}

// Option configures a Client
type Option func(*settings)

// WithBaseURL points the client at another server
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithLocation sets the zone API timestamps are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(s *settings) { s.loc = loc }
}

// WithLogger sets the logger used for diagnostics
func WithLogger(l *logrus.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithRateLimit paces outgoing requests
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		s.limit = limit
		s.burst = burst
	}
}

// WithDebug enables resty's request/response tracing
func WithDebug(debug bool) Option {
	return func(s *settings) { s.debug = debug }
}

// New creates a client with an empty session
func New(opts ...Option) (*Client, error) {
	s := settings{
		baseURL: DefaultBaseURL,
		timeout: 30 * time.Second,
		limit:   5,
		burst:   5,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.loc == nil {
		loc, err := time.LoadLocation(models.DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("loading default timezone: %w", err)
		}
		s.loc = loc
	}
	if s.logger == nil {
		s.logger = logrus.New()
		s.logger.SetOutput(os.Stderr)
		s.logger.SetLevel(logrus.WarnLevel)
	}

	baseURL, err := url.Parse(strings.TrimRight(s.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", s.baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		loc:     s.loc,
		logger:  s.logger,
		limiter: rate.NewLimiter(s.limit, s.burst),
	}

	c.http = resty.New().
		SetBaseURL(baseURL.String()).
		SetCookieJar(jar).
		SetTimeout(s.timeout).
		SetHeader("user-agent", userAgent).
		SetHeader("accept-language", "en-US,en;q=0.9").
		SetLogger(s.logger).
		SetDebug(s.debug)
	c.http.OnBeforeRequest(c.beforeRequest)
	c.http.OnAfterResponse(c.afterResponse)

	return c, nil
}

// Location returns the zone API timestamps are interpreted in
func (c *Client) Location() *time.Location {
	return c.loc
}

func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"method": req.Method,
		"url":    req.URL,
	}).Debug("start request")
	return nil
}

func (c *Client) afterResponse(_ *resty.Client, res *resty.Response) error {
	c.logger.WithFields(logrus.Fields{
		"method":   res.Request.Method,
		"url":      res.Request.URL,
		"status":   res.StatusCode(),
		"duration": res.Time(),
	}).Debug("request finished")
	return nil
}

// apiRequest builds a request carrying the dashboard's API headers
func (c *Client) apiRequest(ctx context.Context) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("accept", apiAccept).
		SetHeader("content-type", "application/json").
		SetHeader("referer", c.baseURL.String()+"/dashboard").
		SetHeader("sec-fetch-dest", "empty").
		SetHeader("sec-fetch-mode", "cors").
		SetHeader("sec-fetch-site", "same-origin")
}

// Login posts credentials to the login form and keeps the session cookie
func (c *Client) Login(ctx context.Context, email, password string) error {
	c.loggedIn = false

	if email == "" || password == "" {
		return &AuthError{Message: "email and password are required", Err: ErrInvalidCredentials}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"email":    email,
			"password": password,
		}).
		Post("/login")
	if err != nil {
		return fmt.Errorf("posting login form: %w", err)
	}
	if err := checkResponse(res); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			authErr.Err = ErrInvalidCredentials
		}
		return err
	}

	hasSession := c.SessionCookie() != nil

	landed := ""
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		landed = strings.ToLower(res.RawResponse.Request.URL.Path)
	}
	flash := loginFlash(res.Body())
	// A session cookie is proof of login; without one, a login or error page means rejection
	if !hasSession && (strings.Contains(landed, "login") ||
		flash != "" || strings.Contains(strings.ToLower(res.String()), "error")) {
		msg := "login failed: check your email and password"
		if flash != "" {
			msg = "login failed: " + flash
		}
		return &AuthError{
			StatusCode: res.StatusCode(),
			Message:    msg,
			Err:        ErrInvalidCredentials,
		}
	}

	if !hasSession {
		c.logger.Warnf("login response did not set a %s cookie; continuing", SessionCookie)
	}

	c.loggedIn = true
	c.logger.WithField("email", email).Debug("logged in")
	return nil
}

// loginFlash returns the error banner text of a rendered login page
func loginFlash(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	sel := doc.Find(".error, .alert-danger, .flash-error, #error_explanation").First()
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// IsLoggedIn reports whether Login succeeded and Logout has not been called
func (c *Client) IsLoggedIn() bool {
	return c.loggedIn
}

// SessionCookie returns the session cookie for the base URL, if any
func (c *Client) SessionCookie() *http.Cookie {
	jar := c.http.GetClient().Jar
	if jar == nil {
		return nil
	}
	for _, cookie := range jar.Cookies(c.baseURL) {
		if cookie.Name == SessionCookie {
			return cookie
		}
	}
	return nil
}

// Logout drops the session cookie
func (c *Client) Logout() {
	if jar, err := cookiejar.New(nil); err == nil {
		c.http.SetCookieJar(jar)
	} else {
		c.http.SetCookieJar(nil)
	}
	c.loggedIn = false
}

func (c *Client) requireLogin() error {
	if !c.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}
