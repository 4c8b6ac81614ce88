package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageWindows(t *testing.T) {
	loc, err := time.LoadLocation(models.DefaultTimezone)
	require.NoError(t, err)
	now := time.Date(2025, 6, 10, 14, 30, 0, 0, loc)

	t.Run("default is yesterday plus trailing days", func(t *testing.T) {
		windows, err := usageWindows(now, 0, "", "", 7)
		require.NoError(t, err)
		require.Len(t, windows, 2)

		assert.Equal(t, "Yesterday", windows[0].Title)
		assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, loc), windows[0].Start)
		assert.Equal(t, time.Date(2025, 6, 9, 23, 59, 59, 0, loc), windows[0].End)

		assert.Equal(t, "Last 7 Days", windows[1].Title)
		assert.Equal(t, time.Date(2025, 6, 3, 0, 0, 0, 0, loc), windows[1].Start)
		assert.Equal(t, time.Date(2025, 6, 9, 23, 59, 59, 0, loc), windows[1].End)
	})

	t.Run("days", func(t *testing.T) {
		windows, err := usageWindows(now, 30, "", "", 7)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, time.Date(2025, 5, 11, 0, 0, 0, 0, loc), windows[0].Start)
		assert.Equal(t, "2025-05-11 to 2025-06-09", windows[0].Title)
	})

	t.Run("explicit range", func(t *testing.T) {
		windows, err := usageWindows(now, 0, "2025-06-01", "2025-06-15", 7)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, loc), windows[0].Start)
		assert.Equal(t, time.Date(2025, 6, 15, 23, 59, 59, 0, loc), windows[0].End)
	})

	t.Run("relative range", func(t *testing.T) {
		windows, err := usageWindows(now, 0, "14d", "1d", 7)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, time.Date(2025, 5, 27, 0, 0, 0, 0, loc), windows[0].Start)
		assert.Equal(t, time.Date(2025, 6, 9, 23, 59, 59, 0, loc), windows[0].End)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := usageWindows(now, 0, "2025-06-01", "", 7)
		assert.Error(t, err)
		_, err = usageWindows(now, 0, "2025-06-15", "2025-06-01", 7)
		assert.Error(t, err)
		_, err = usageWindows(now, 0, "06/01/2025", "2025-06-15", 7)
		assert.Error(t, err)
		_, err = usageWindows(now, 0, "xd", "1d", 7)
		assert.Error(t, err)
		_, err = usageWindows(now, -1, "", "", 7)
		assert.Error(t, err)
	})
}

func TestFormatGallons(t *testing.T) {
	assert.Equal(t, "1,234.5", formatGallons(1234.5))
	assert.Equal(t, "100", formatGallons(100))
	assert.Equal(t, "0", formatGallons(0))
}

const (
	cliEmail    = "user@example.com"
	cliPassword = "secret"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("email") == cliEmail && r.PostForm.Get("password") == cliPassword {
			http.SetCookie(w, &http.Cookie{Name: "rack.session", Value: "s1", Path: "/"})
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		io.WriteString(w, `<div class="error">Invalid email or password</div>`)
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("rack.session"); err != nil || c.Value != "s1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/me":
			io.WriteString(w, `{"data": {"premises": [
				{"id": 1, "address": "1 Main St", "service_connections": [{"id": 101, "name": "Main meter"}]},
				{"id": 2, "address": "9 Lake Rd", "service_connections": [{"id": 201, "name": "Cabin meter"}]}
			]}}`)
		case "/api/service_connections/101":
			io.WriteString(w, `{"data": {"id": 101, "name": "Main meter", "address": "1 Main St", "meter_serial": "SN-1"}}`)
		case "/api/service_connections/101/usage":
			io.WriteString(w, `{"data": {"@id": "u", "totalItems": 2, "consumed_via": {"@id": "/api/service_connections/101"}, "member": [
				{"during": "2025-06-01T00:00:00.000Z/2025-06-02T00:00:00.000Z", "total_gallons": 1234.5, "irrigation_gallons": 200, "irrigation_events": 1, "is_leaking": false},
				{"during": "2025-06-02T00:00:00.000Z/2025-06-03T00:00:00.000Z", "total_gallons": 80, "irrigation_gallons": 0, "irrigation_events": 0, "is_leaking": true}
			]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// resetFlags restores every flag to its default between runs
func resetFlags() {
	var reset func(*cobra.Command)
	reset = func(c *cobra.Command) {
		restore := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(restore)
		c.PersistentFlags().VisitAll(restore)
		for _, sub := range c.Commands() {
			reset(sub)
		}
	}
	reset(rootCmd)
}

type cliEnv struct {
	configPath string
	dbPath     string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	srv := newFakeServer(t)
	dir := t.TempDir()

	env := cliEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "data.db"),
	}
	require.NoError(t, os.WriteFile(env.configPath, []byte("base_url: "+srv.URL+"\n"), 0600))
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--config", e.configPath, "--db", e.dbPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestServicesCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "services", "--email", cliEmail, "--password", cliPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 service connection(s)")
	assert.Contains(t, out, "Main meter")
	assert.Contains(t, out, "Cabin meter")
}

func TestServiceCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "service", "101", "--email", cliEmail, "--password", cliPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "SN-1")

	_, err = env.run(t, "service", "--email", cliEmail, "--password", cliPassword)
	assert.Error(t, err)
}

func TestUsageCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "usage",
		"--email", cliEmail, "--password", cliPassword,
		"--start_date", "2025-06-01", "--end_date", "2025-06-02")
	require.NoError(t, err)

	assert.Contains(t, out, "Using service: Main meter (ID: 101)")
	assert.Contains(t, out, "2025-06-01 to 2025-06-02")
	assert.Contains(t, out, "1,234.5")
	assert.Contains(t, out, "1,314.5")
	assert.Contains(t, out, "LEAK")
}

func TestUsageSaveAndHistory(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "usage",
		"--email", cliEmail, "--password", cliPassword,
		"--service_id", "101", "--start_date", "2025-06-01", "--end_date", "2025-06-02", "--save")
	require.NoError(t, err)

	out, err := env.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Service 101 usage")
	// footers are upper-cased by the table style
	assert.Contains(t, strings.ToLower(out), "2 records")
	assert.Contains(t, out, "2025-06-02")
}

func TestCredentialsFromEnvironment(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("DROPCOUNTR_EMAIL", cliEmail)
	t.Setenv("DROPCOUNTR_PASSWORD", cliPassword)

	out, err := env.run(t, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
}

func TestLoginRemember(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "login", "--remember", "--email", cliEmail, "--password", cliPassword)
	require.NoError(t, err)

	// Saved credentials are enough on the next run
	out, err := env.run(t, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "Main meter")
}

func TestAuthFailures(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("DROPCOUNTR_EMAIL", "")
	t.Setenv("DROPCOUNTR_PASSWORD", "")

	_, err := env.run(t, "services", "--email", cliEmail, "--password", "wrong")
	require.Error(t, err)
	assert.Equal(t, "logging in: login failed: Invalid email or password", err.Error())

	_, err = env.run(t, "services")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email and password required")
}

func TestPublishRequiresMQTT(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT is not enabled")
}
