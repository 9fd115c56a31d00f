package server

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/cstrsim/internal/reactor"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	ep, err := reactor.New(reactor.WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	return New(ep, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestResetDefaults(t *testing.T) {
	s := newServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/reset", "")
	require.Equal(t, http.StatusOK, code)

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.NotEmpty(t, resp.Episode)
	assert.Equal(t, reactor.ModeTransition, resp.Config.Mode)
	assert.InDelta(t, reactor.LowSteadyConcentration, resp.State.Cr, 1e-9)
	assert.InDelta(t, reactor.LowSteadyTemperature, resp.State.Tr, 1e-9)
	assert.InDelta(t, 8.57, resp.State.Cref, 1e-9)
}

func TestResetWithConfig(t *testing.T) {
	s := newServer(t)

	code, body := do(t, s, http.MethodPost, "/v1/reset", `{"Cref_signal": 2, "step_time": 0.5, "edo_solver_n_its": 4}`)
	require.Equal(t, http.StatusOK, code)

	var resp ResetResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, reactor.ModeHighSteady, resp.Config.Mode)
	assert.Equal(t, 0.5, resp.Config.Interval)
	assert.Equal(t, 4, resp.Config.Substeps)
	assert.InDelta(t, reactor.HighSteadyTemperature, resp.State.Tref, 1e-9)
}

func TestResetRejectsInvalidConfig(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown mode", `{"Cref_signal": 7}`},
		{"noise too large", `{"noise_percentage": 1.5}`},
		{"interval too long", `{"step_time": 1e9}`},
		{"too many substeps", `{"edo_solver_n_its": 100000}`},
		{"malformed", `{"Cref_signal":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, s, http.MethodPost, "/v1/reset", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, string(body), "error")
		})
	}
}

func TestStep(t *testing.T) {
	s := newServer(t)
	do(t, s, http.MethodPost, "/v1/reset", `{"Cref_signal": 3}`)

	code, body := do(t, s, http.MethodPost, "/v1/step", `{"Tc_adjust": 1.5}`)
	require.Equal(t, http.StatusOK, code)

	var resp StepResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.Halted)
	assert.Greater(t, resp.State.Tr, reactor.LowSteadyTemperature)

	code, body = do(t, s, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, code)
	var obs reactor.Observation
	require.NoError(t, json.Unmarshal(body, &obs))
	assert.Equal(t, resp.State, obs)

	code, body = do(t, s, http.MethodGet, "/v1/episode", "")
	require.Equal(t, http.StatusOK, code)
	var info EpisodeInfo
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, 1, info.Steps)
	assert.Equal(t, "running", info.Phase)
}

func TestStepRequiresAction(t *testing.T) {
	s := newServer(t)

	code, _ := do(t, s, http.MethodPost, "/v1/step", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPost, "/v1/step", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStepActuatorLimit(t *testing.T) {
	s := newServer(t)
	do(t, s, http.MethodPost, "/v1/reset", `{"Cref_signal": 3}`)

	code, _ := do(t, s, http.MethodPost, "/v1/step", `{"Tc_adjust": 25}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, body := do(t, s, http.MethodGet, "/v1/halted", "")
	require.Equal(t, http.StatusOK, code)
	var h HaltedResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.True(t, h.Halted)
	assert.Equal(t, reactor.HaltActuatorLimit.String(), h.Reason)

	code, _ = do(t, s, http.MethodPost, "/v1/step", `{"Tc_adjust": 0}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = do(t, s, http.MethodPost, "/v1/reset", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodPost, "/v1/step", `{"Tc_adjust": 0}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestStepRunaway(t *testing.T) {
	s := newServer(t)
	do(t, s, http.MethodPost, "/v1/reset", `{"Cref_signal": 3}`)

	var resp StepResponse
	for i := 0; i < 20 && !resp.Halted; i++ {
		code, body := do(t, s, http.MethodPost, "/v1/step", `{"Tc_adjust": 10}`)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(body, &resp))
	}
	assert.True(t, resp.Halted)
	assert.Equal(t, reactor.HaltThermalRunaway.String(), resp.HaltReason)
	assert.GreaterOrEqual(t, resp.State.Tr, reactor.ThermalRunawayTemperature)
}

func TestStreamRequiresUpgrade(t *testing.T) {
	s := newServer(t)
	code, _ := do(t, s, http.MethodGet, "/v1/stream", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestServerLogsRejections(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ep, err := reactor.New()
	require.NoError(t, err)
	s := New(ep, zap.New(core))

	do(t, s, http.MethodPost, "/v1/reset", `{"Cref_signal": 9}`)
	assert.Equal(t, 1, logs.FilterMessage("request rejected").Len())
}
