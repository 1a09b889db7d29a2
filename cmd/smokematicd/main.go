// Command smokematicd runs the smoker controller daemon: it reads a
// JSON config (spec.md §6), wires the hardware, PID, profile scheduler,
// baster, and HTTP+WebSocket API together, and serves until a shutdown
// signal arrives. Grounded on the teacher's cmd/main.go Application
// struct (context + signal channel + WaitGroup-backed graceful
// shutdown), generalized from its single-process-no-listener shape to
// one that also owns an http.Server.
package main

import (
	"context"
	_ "embed"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Caligatio/smokematic/internal/baster"
	"github.com/Caligatio/smokematic/internal/blower"
	"github.com/Caligatio/smokematic/internal/config"
	"github.com/Caligatio/smokematic/internal/controller"
	"github.com/Caligatio/smokematic/internal/hardware"
	"github.com/Caligatio/smokematic/internal/httpapi"
	"github.com/Caligatio/smokematic/internal/pid"
	"github.com/Caligatio/smokematic/internal/probe"
	"github.com/Caligatio/smokematic/internal/scheduler"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// shutdownTimeout bounds how long graceful shutdown waits for the HTTP
// server and scheduler to drain before forcing exit.
const shutdownTimeout = 5 * time.Second

type application struct {
	sched      *scheduler.Scheduler
	httpServer *http.Server

	blower *blower.Blower
	baster *baster.Baster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func main() {
	cfgPath := ""
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("smokematicd: failed to load configuration")
	}
	log.SetLevel(cfg.LogrusLevel())

	app := &application{}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	if err := app.initialize(cfg); err != nil {
		log.WithError(err).Fatal("smokematicd: failed to initialize")
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	app.start()
	log.WithField("port", cfg.Server.Port).Info("smokematicd: started")

	select {
	case sig := <-signalCh:
		log.WithField("signal", sig).Info("smokematicd: received shutdown signal")
	case <-app.ctx.Done():
		log.Info("smokematicd: context cancelled")
	}

	app.shutdown()
	log.Info("smokematicd: stopped")
}

// loadConfig reads cfgPath if given, else falls back to the embedded
// default configuration (spec.md §6 CLI).
func loadConfig(cfgPath string) (*config.Config, error) {
	if cfgPath == "" {
		return config.Parse(defaultConfigJSON)
	}
	return config.Load(cfgPath)
}

func (app *application) initialize(cfg *config.Config) error {
	app.sched = scheduler.New()

	if err := hardware.InitHost(); err != nil {
		return err
	}

	blowerPWM, err := hardware.NewSysfsPWM(cfg.Blower.Pin)
	if err != nil {
		return err
	}
	app.blower = blower.New(app.sched, blowerPWM)

	basterGPIO, err := hardware.NewPeriphGPIO("", cfg.Baster.Pin)
	if err != nil {
		return err
	}
	app.baster, err = baster.New(app.sched, basterGPIO)
	if err != nil {
		return err
	}

	adc := hardware.NewIIOADC("/sys/bus/iio/devices/iio:device0", 65535)
	if err := adc.Setup(); err != nil {
		return err
	}

	pitProbe := probe.New(app.sched, adc, cfg.PitProbe.Pin, cfg.PitProbe.ShA, cfg.PitProbe.ShB, cfg.PitProbe.ShC)

	foodProbes := make([]*probe.Probe, len(cfg.FoodProbes))
	foodReaders := make([]controller.Probe, len(cfg.FoodProbes))
	httpFoodReaders := make([]httpapi.Prober, len(cfg.FoodProbes))
	for i, fc := range cfg.FoodProbes {
		foodProbes[i] = probe.New(app.sched, adc, fc.Pin, fc.ShA, fc.ShB, fc.ShC)
		foodReaders[i] = foodProbes[i]
		httpFoodReaders[i] = foodProbes[i]
	}

	pidLoop := pid.New(app.sched, pitProbe, app.blower)

	ctrl := controller.New(app.sched, pidLoop, app.blower, pitProbe, foodReaders)
	ctrl.SetPIDCoefficients(cfg.PIDCoefficients.KP, cfg.PIDCoefficients.KI, cfg.PIDCoefficients.KD)
	if err := ctrl.SetProfile(map[int]float64{0: cfg.InitialSetpoint}); err != nil {
		return err
	}

	srv := httpapi.New(app.sched, ctrl, app.baster, pitProbe, httpFoodReaders, app.blower, cfg.Metrics.Enabled)
	app.httpServer = &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Server.Port),
		Handler: srv.Handler(),
	}

	return nil
}

func (app *application) start() {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.sched.Run(app.ctx)
	}()

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("smokematicd: http server failed")
			app.cancel()
		}
	}()
}

func (app *application) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("smokematicd: http server did not shut down cleanly")
	}

	app.cancel()

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("smokematicd: all goroutines stopped")
	case <-time.After(shutdownTimeout):
		log.Warn("smokematicd: shutdown timed out, forcing exit")
	}

	// Cleanup runs only after the scheduler goroutine has actually
	// stopped (or the wait timed out), so it never races an in-flight
	// PWM sysfs write from a blower callback.
	if err := app.blower.Cleanup(); err != nil {
		log.WithError(err).Warn("smokematicd: blower cleanup failed")
	}
}

