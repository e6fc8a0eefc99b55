package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jub0bs/corsguard"
	"github.com/jub0bs/corsguard/corsmetrics"
	"github.com/jub0bs/corsguard/policyfile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoMiddleware(t *testing.T) (*corsguard.Middleware, http.Handler) {
	t.Helper()
	cfg, err := policyfile.Load(filepath.Join(".", "policy.yaml"))
	require.NoError(t, err)
	mw, err := corsguard.NewMiddleware(cfg)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	mw.SetObserver(corsmetrics.MustNew(reg))
	return mw, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func TestHTTPServer(t *testing.T) {
	mw, metrics := newDemoMiddleware(t)
	h := newHTTPServer(":0", mw, metrics).srv.Handler

	t.Run("allowed actual request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, resourcePath, nil)
		req.Header.Set("Origin", "https://www.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://www.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.JSONEq(t, `{"message":"CORS is enabled for this resource"}`, rec.Body.String())
	})
	t.Run("denied actual request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, resourcePath, nil)
		req.Header.Set("Origin", "http://disallowed-domain.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
	t.Run("allowed preflight request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, resourcePath, nil)
		req.Header.Set("Origin", "https://www.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "GET,HEAD,PUT,PATCH,POST,DELETE", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type,Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Empty(t, rec.Body.String())
	})
	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, metricsPath, nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `corsguard_decisions_total{kind="actual",result="allowed"} 1`)
		assert.Contains(t, rec.Body.String(), `corsguard_decisions_total{kind="actual",result="denied"} 1`)
		assert.Contains(t, rec.Body.String(), `corsguard_decisions_total{kind="preflight",result="allowed"} 1`)
	})
}

func TestFiberServer(t *testing.T) {
	mw, metrics := newDemoMiddleware(t)
	app := newFiberServer(":0", mw, metrics).app

	req := httptest.NewRequest(http.MethodGet, resourcePath, nil)
	req.Header.Set("Origin", "https://subdomain.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://subdomain.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.JSONEq(t, `{"message":"CORS is enabled for this resource"}`, string(body))

	req = httptest.NewRequest(http.MethodOptions, resourcePath, nil)
	req.Header.Set("Origin", "http://disallowed-domain.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestNewLogger(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.True(t, newLogger().IsLevelEnabled(logrus.DebugLevel))

	t.Setenv("LOG_LEVEL", "bogus")
	assert.False(t, newLogger().IsLevelEnabled(logrus.DebugLevel))
}

func TestParseOptions(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			want: options{Policy: "policy.yaml", Addr: ":8080", Server: "http"},
		}, {
			name: "all flags",
			args: []string{"-p", "cors.toml", "--addr", "localhost:9090", "--server", "fiber", "--print-policy"},
			want: options{Policy: "cors.toml", Addr: "localhost:9090", Server: "fiber", PrintPolicy: true},
		}, {
			name:    "unknown server",
			args:    []string{"--server", "gin"},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := parseOptions(tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, tc.want, *opts)
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestPrintPolicy(t *testing.T) {
	mw, _ := newDemoMiddleware(t)

	var buf bytes.Buffer
	require.NoError(t, printPolicy(&buf, mw.Config()))
	assert.Contains(t, buf.String(), "allowed_origins:")
	assert.Contains(t, buf.String(), "- https://www.example.com")

	err := printPolicy(failingWriter{}, mw.Config())
	assert.ErrorContains(t, err, "disk full")
}
