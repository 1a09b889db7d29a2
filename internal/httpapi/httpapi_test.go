package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caligatio/smokematic/internal/baster"
	"github.com/Caligatio/smokematic/internal/controller"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

type fakePID struct {
	kp, ki, kd float64
	setpoint   *float64
}

func (f *fakePID) SetCoefficients(kp, ki, kd float64) { f.kp, f.ki, f.kd = kp, ki, kd }
func (f *fakePID) GetCoefficients() (float64, float64, float64) {
	return f.kp, f.ki, f.kd
}
func (f *fakePID) SetSetpoint(t float64) error {
	f.setpoint = &t
	return nil
}
func (f *fakePID) GetSetpoint() (float64, bool) {
	if f.setpoint == nil {
		return 0, false
	}
	return *f.setpoint, true
}

type fakeProbe struct{ temp float64 }

func (f *fakeProbe) GetTemp() (float64, error) { return f.temp, nil }

type fakeBlower struct{ speed int }

func (f *fakeBlower) GetSpeed() int { return f.speed }

func newTestServer(t *testing.T) (*Server, *scheduler.Scheduler, func()) {
	t.Helper()
	sched := scheduler.New()
	p := &fakePID{}
	pit := &fakeProbe{temp: 200}
	food := &fakeProbe{temp: 150}
	bl := &fakeBlower{speed: 40}
	ctrl := controller.New(sched, p, bl, pit, []controller.Probe{food})
	require.NoError(t, ctrl.SetProfile(map[int]float64{0: 225}))

	gpio := hardware.NewFakeGPIO()
	bst, err := baster.New(sched, gpio)
	require.NoError(t, err)
	require.NoError(t, bst.Config(0, 0))

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	srv := New(sched, ctrl, bst, pit, []Prober{food}, bl, false)
	return srv, sched, cancel
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthz(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "success", env.Status)
}

func TestBasteGetReturnsSettings(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodGet, "/baste", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBastePutAppliesConfig(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/baste", map[string]float64{"frequency": 2, "duration": 10})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/baste", nil)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, 2.0, data["frequency"])
	assert.Equal(t, 10.0, data["duration"])
}

func TestBastePutRejectsInvalidRangeWith400(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/baste", map[string]float64{"frequency": -1, "duration": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "fail", env.Status)
}

func TestOverridePutThenGetThenDelete(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/override", map[string]float64{"temperature": 275})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/override", nil)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, true, data["override"])
	assert.Equal(t, 275.0, data["temperature"])

	w = doJSON(t, srv, http.MethodDelete, "/override", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/override", nil)
	env = decodeEnvelope(t, w)
	data = env.Data.(map[string]interface{})
	assert.Equal(t, false, data["override"])
}

func TestOverrideDeleteWithoutOverrideReturns400(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodDelete, "/override", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfilePutRejectsMissingMinuteZero(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/profile", map[string]interface{}{
		"profile": map[string]float64{"5": 200},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProfilePutRejectsNonIntegerKey(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/profile", map[string]interface{}{
		"profile": map[string]float64{"abc": 200},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPIDPutThenGet(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	body := map[string]interface{}{"coefficients": map[string]float64{"p": 3, "i": 0.005, "d": 20}}
	w := doJSON(t, srv, http.MethodPut, "/pid", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/pid", nil)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]interface{})
	coeffs := data["coefficients"].(map[string]interface{})
	assert.Equal(t, 3.0, coeffs["p"])
}

func TestAlarmsPutRejectsWrongLengthWith400(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/alarms", map[string]interface{}{
		"food_alarms": []float64{1, 2, 3},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlarmsPutThenGet(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodPut, "/alarms", map[string]interface{}{
		"food_alarms": []float64{160},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/alarms", nil)
	env := decodeEnvelope(t, w)
	data := env.Data.(map[string]interface{})
	alarms := data["food_alarms"].([]interface{})
	assert.Equal(t, 160.0, alarms[0])
}

func TestMetricsNotMountedWhenDisabled(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	w := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusWebSocketSendsInitialSnapshotOnConnect(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "initial", msg["type"])
}

func TestSubmitWaitsForSchedulerCompletion(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	deadline := time.After(1 * time.Second)
	resultCh := make(chan error, 1)
	go func() {
		resultCh <- srv.submit(func() error { return nil })
	}()
	select {
	case err := <-resultCh:
		assert.NoError(t, err)
	case <-deadline:
		t.Fatal("submit did not complete in time")
	}
}
