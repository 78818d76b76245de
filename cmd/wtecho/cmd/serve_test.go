package cmd

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/OkutaniDaichi0106/gowtecho/internal/config"
	"github.com/OkutaniDaichi0106/gowtecho/internal/wttest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()

	cmd := serveCmd()
	require.NoError(t, cmd.Flags().Parse(args))

	cfg, err := config.Load("", cmd.Flags())
	require.NoError(t, err)
	return cfg
}

func TestServeCmd_Flags(t *testing.T) {
	cfg := testConfig(t,
		"--addr", "127.0.0.1:4443",
		"--secured",
		"--log-level", "debug",
		"--key-mode", "hkdf",
		"--write-timeout", "1s",
	)

	assert.Equal(t, "127.0.0.1:4443", cfg.Addr)
	assert.True(t, cfg.Secured)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.KeyModeHKDF, cfg.Key.Mode)
	assert.Equal(t, time.Second, cfg.WriteTimeout)
}

func TestServeCmd_Args(t *testing.T) {
	cmd := serveCmd()

	assert.Error(t, cmd.Args(cmd, []string{"cert.pem"}))
	assert.NoError(t, cmd.Args(cmd, []string{"cert.pem", "key.pem"}))
}

func TestNewServer(t *testing.T) {
	tests := map[string]struct {
		args      []string
		expectErr bool
	}{
		"plain": {
			args: []string{"--write-timeout", "2s"},
		},
		"secured": {
			args: []string{"--secured"},
		},
		"secured with hkdf": {
			args: []string{"--secured", "--key-mode", "hkdf"},
		},
		"secured with missing key file": {
			args:      []string{"--secured", "--key-file", "does-not-exist"},
			expectErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t, tt.args...)

			server, err := newServer(cfg, wttest.NewLogger(t), prometheus.NewRegistry())
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, cfg.Addr, server.Addr)
			assert.Equal(t, cfg.WriteTimeout, server.WriteTimeout)
			require.NotNil(t, server.QUICConfig)
			assert.True(t, server.QUICConfig.EnableDatagrams)
			assert.Equal(t, cfg.IdleTimeout, server.QUICConfig.MaxIdleTimeout)
			require.NotNil(t, server.Config)
			assert.Equal(t, cfg.Secured, server.Config.Secured)
			assert.Equal(t, cfg.Secured, server.Config.Keys != nil)
			assert.NotNil(t, server.Config.Tracer)
		})
	}
}

func TestMetricsMux(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := newServer(testConfig(t), wttest.NewLogger(t), reg)
	require.NoError(t, err)

	srv := httptest.NewServer(metricsMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "wtecho_sessions_active")

	resp, err = http.Get(srv.URL + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
