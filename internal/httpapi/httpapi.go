// Package httpapi implements the REST + WebSocket surface (spec.md §6).
// Grounded on the raphaelreyna-pi-heater dependency stack
// (gorilla/mux + gorilla/websocket); the handler bodies are original to
// this repository since the example only carries pi-heater's go.mod and
// its coil.go actor, not an HTTP layer. Both state mutations and state
// reads are submitted onto the shared scheduler with After(0, fn) so
// they run serialized with every other callback (SPEC_FULL.md §5), even
// though each net/http handler and the WebSocket push loop execute on
// their own goroutines: Controller/PID/Blower/Baster keep no locks of
// their own, so any access from outside the scheduler goroutine would
// race its periodic ticks.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/baster"
	"github.com/Caligatio/smokematic/internal/controller"
	"github.com/Caligatio/smokematic/internal/errs"
	"github.com/Caligatio/smokematic/internal/metrics"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

// Prober is the read-only probe surface the HTTP layer observes.
type Prober interface {
	GetTemp() (float64, error)
}

// BlowerReader is the read-only blower surface the HTTP layer observes.
type BlowerReader interface {
	GetSpeed() int
}

// pushInterval is the WebSocket live-update cadence.
const pushInterval = 5 * time.Second

// metricsPeriod is how often the optional Prometheus gauges are
// refreshed from live state.
const metricsPeriod = 5 * time.Second

// Server wires the Controller, Baster, and shared probes/blower into an
// HTTP+WebSocket API running on the shared scheduler.
type Server struct {
	router *mux.Router
	sched  *scheduler.Scheduler

	ctrl   *controller.Controller
	baster *baster.Baster
	pit    Prober
	food   []Prober
	blower BlowerReader

	metricsEnabled bool
	upgrader       websocket.Upgrader
}

// New constructs a Server and registers all routes.
func New(sched *scheduler.Scheduler, ctrl *controller.Controller, bst *baster.Baster, pit Prober, food []Prober, blower BlowerReader, metricsEnabled bool) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		sched:          sched,
		ctrl:           ctrl,
		baster:         bst,
		pit:            pit,
		food:           food,
		blower:         blower,
		metricsEnabled: metricsEnabled,
		upgrader:       websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	s.routes()
	if metricsEnabled {
		s.sched.Every(metricsPeriod, s.observeMetrics)
	}
	return s
}

// Handler returns the composed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatusWS).Methods(http.MethodGet)
	s.router.HandleFunc("/baste", s.handleBasteGet).Methods(http.MethodGet)
	s.router.HandleFunc("/baste", s.handleBastePut).Methods(http.MethodPut)
	s.router.HandleFunc("/override", s.handleOverrideGet).Methods(http.MethodGet)
	s.router.HandleFunc("/override", s.handleOverridePut).Methods(http.MethodPut)
	s.router.HandleFunc("/override", s.handleOverrideDelete).Methods(http.MethodDelete)
	s.router.HandleFunc("/profile", s.handleProfileGet).Methods(http.MethodGet)
	s.router.HandleFunc("/profile", s.handleProfilePut).Methods(http.MethodPut)
	s.router.HandleFunc("/pid", s.handlePIDGet).Methods(http.MethodGet)
	s.router.HandleFunc("/pid", s.handlePIDPut).Methods(http.MethodPut)
	s.router.HandleFunc("/alarms", s.handleAlarmsGet).Methods(http.MethodGet)
	s.router.HandleFunc("/alarms", s.handleAlarmsPut).Methods(http.MethodPut)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.metricsEnabled {
		s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
}

// submit runs fn on the shared scheduler and blocks for its result,
// giving HTTP handlers the same serialization guarantee every other
// callback gets.
func (s *Server) submit(fn func() error) error {
	done := make(chan error, 1)
	s.sched.After(0, func() {
		done <- fn()
	})
	return <-done
}

type envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: data})
}

func writeFail(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Status: "fail", Message: msg})
}

func writeServerError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("httpapi: failed writing response body")
	}
}

// writeActionErr maps an error returned from a component operation to
// the spec.md §7 status code policy: RangeError/ConfigError -> 400,
// anything else -> 500.
func writeActionErr(w http.ResponseWriter, err error) {
	if errs.IsClientError(err) {
		writeFail(w, err.Error())
		return
	}
	writeServerError(w, err.Error())
}

func (s *Server) handleBasteGet(w http.ResponseWriter, r *http.Request) {
	var freq, dur float64
	_ = s.submit(func() error {
		freq, dur = s.baster.GetSettings()
		return nil
	})
	writeSuccess(w, map[string]float64{"frequency": freq, "duration": dur})
}

func (s *Server) handleBastePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Frequency float64 `json:"frequency"`
		Duration  float64 `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, "invalid request body")
		return
	}
	err := s.submit(func() error {
		return s.baster.Config(body.Frequency, body.Duration)
	})
	if err != nil {
		writeActionErr(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleOverrideGet(w http.ResponseWriter, r *http.Request) {
	var state controller.State
	var temp interface{}
	_ = s.submit(func() error {
		state = s.ctrl.GetState()
		if t, ok := s.ctrl.GetSetpoint(); ok {
			temp = t
		}
		return nil
	})
	writeSuccess(w, map[string]interface{}{
		"override":    state == controller.Override,
		"temperature": temp,
	})
}

func (s *Server) handleOverridePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Temperature float64 `json:"temperature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, "invalid request body")
		return
	}
	err := s.submit(func() error {
		return s.ctrl.OverrideTemp(body.Temperature)
	})
	if err != nil {
		writeActionErr(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleOverrideDelete(w http.ResponseWriter, r *http.Request) {
	err := s.submit(func() error {
		if s.ctrl.GetState() != controller.Override {
			return &errs.ConfigError{Msg: "not currently in override"}
		}
		s.ctrl.ResumeProfile()
		return nil
	})
	if err != nil {
		writeActionErr(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	var hist map[int]controller.StatPoint
	_ = s.submit(func() error {
		hist = s.ctrl.GetStatHistory(5)
		return nil
	})
	out := make(map[string]float64, len(hist))
	for minute, sp := range hist {
		out[strconv.Itoa(minute)] = sp.PitTemp
	}
	writeSuccess(w, out)
}

func (s *Server) handleProfilePut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile map[string]float64 `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, "invalid request body")
		return
	}
	profile := make(map[int]float64, len(body.Profile))
	for k, v := range body.Profile {
		minute, err := strconv.Atoi(k)
		if err != nil || minute < 0 {
			writeFail(w, "profile keys must be non-negative integer minute offsets")
			return
		}
		profile[minute] = v
	}
	err := s.submit(func() error {
		return s.ctrl.SetProfile(profile)
	})
	if err != nil {
		writeActionErr(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handlePIDGet(w http.ResponseWriter, r *http.Request) {
	var p, i, d float64
	_ = s.submit(func() error {
		p, i, d = s.ctrl.GetPIDCoefficients()
		return nil
	})
	writeSuccess(w, map[string]interface{}{
		"coefficients": map[string]float64{"p": p, "i": i, "d": d},
	})
}

func (s *Server) handlePIDPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Coefficients struct {
			P float64 `json:"p"`
			I float64 `json:"i"`
			D float64 `json:"d"`
		} `json:"coefficients"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, "invalid request body")
		return
	}
	_ = s.submit(func() error {
		s.ctrl.SetPIDCoefficients(body.Coefficients.P, body.Coefficients.I, body.Coefficients.D)
		return nil
	})
	writeSuccess(w, nil)
}

func (s *Server) handleAlarmsGet(w http.ResponseWriter, r *http.Request) {
	var alarms []float64
	_ = s.submit(func() error {
		alarms = s.ctrl.GetFoodAlarms()
		return nil
	})
	writeSuccess(w, map[string]interface{}{"food_alarms": alarms})
}

func (s *Server) handleAlarmsPut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FoodAlarms []float64 `json:"food_alarms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFail(w, "invalid request body")
		return
	}
	err := s.submit(func() error {
		return s.ctrl.SetFoodAlarms(body.FoodAlarms)
	})
	if err != nil {
		writeActionErr(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]bool{"up": true})
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("httpapi: websocket upgrade failed")
		return
	}
	defer conn.Close()

	var hist map[int]controller.StatPoint
	_ = s.submit(func() error {
		hist = s.ctrl.GetStatHistory(1)
		return nil
	})
	initial := map[string]interface{}{
		"type": "initial",
		"data": hist,
	}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()
	for range ticker.C {
		var update map[string]interface{}
		_ = s.submit(func() error {
			update = s.snapshotUpdate()
			return nil
		})
		if err := conn.WriteJSON(update); err != nil {
			return
		}
	}
}

// snapshotUpdate reads pit/food/setpoint/blower/alarm state. It must
// only be called from the scheduler goroutine (via submit or a
// scheduler callback), since none of the components it reads hold a
// lock of their own.
func (s *Server) snapshotUpdate() map[string]interface{} {
	pitTemp, _ := s.pit.GetTemp()
	foodTemps := make([]float64, len(s.food))
	for i, p := range s.food {
		t, _ := p.GetTemp()
		foodTemps[i] = t
	}
	setpoint, _ := s.ctrl.GetSetpoint()

	return map[string]interface{}{
		"type": "update",
		"data": map[string]interface{}{
			"pit_temp":     pitTemp,
			"food_temp":    foodTemps,
			"setpoint":     setpoint,
			"food_alarms":  s.ctrl.FoodAlarmStates(),
			"blower_speed": s.blower.GetSpeed(),
		},
	}
}

// observeMetrics is armed on the scheduler itself (not via submit,
// since it already runs on the scheduler goroutine as a scheduler
// callback) and refreshes the optional Prometheus gauges from live
// state.
func (s *Server) observeMetrics() {
	pitTemp, _ := s.pit.GetTemp()
	foodTemps := make([]float64, len(s.food))
	for i, p := range s.food {
		t, _ := p.GetTemp()
		foodTemps[i] = t
	}
	setpoint, _ := s.ctrl.GetSetpoint()
	metrics.Observe(pitTemp, setpoint, s.blower.GetSpeed(), foodTemps, s.baster.IsActive())
}
