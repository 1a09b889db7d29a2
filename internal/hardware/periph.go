package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	log "github.com/sirupsen/logrus"
)

// InitHost initializes the periph.io host driver registry. Must be
// called once before any PeriphGPIO/SysfsPWM is constructed; re-running
// it is a one-time effect per process (spec.md §5, "Shared resources").
func InitHost() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// PeriphGPIO drives a single digital output pin through periph.io,
// grounded on the teacher's pkg/hardware/button.go pin-lookup pattern
// (gpioreg.ByName with a chip/line and a bare-line fallback).
type PeriphGPIO struct {
	pin gpio.PinIO
}

// NewPeriphGPIO resolves a GPIO pin by chip/line name (e.g. "gpiochip0"
// + "17") the same way teacher's button/fan packages do.
func NewPeriphGPIO(chipName, lineNumStr string) (*PeriphGPIO, error) {
	pinName := fmt.Sprintf("%s/%s", chipName, lineNumStr)
	p := gpioreg.ByName(pinName)
	if p == nil {
		p = gpioreg.ByName(lineNumStr)
		if p == nil {
			return nil, fmt.Errorf("failed to find GPIO pin %s or %s", pinName, lineNumStr)
		}
	}
	return &PeriphGPIO{pin: p}, nil
}

func (g *PeriphGPIO) ConfigureOutput() error {
	return g.pin.Out(gpio.Low)
}

func (g *PeriphGPIO) Write(level Level) error {
	if level == High {
		return g.pin.Out(gpio.High)
	}
	return g.pin.Out(gpio.Low)
}

// SysfsPWM drives a hardware PWM channel through the Linux sysfs PWM
// subsystem, adapted from the teacher's hardwarePWMFan (export, period,
// duty_cycle, enable dance under /sys/class/pwm).
type SysfsPWM struct {
	chipPath   string
	exportPath string
	pinPath    string
}

func NewSysfsPWM(pwmChip string) (*SysfsPWM, error) {
	chipPath := fmt.Sprintf("/sys/class/pwm/pwmchip%s", pwmChip)
	if _, err := os.Stat(chipPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("pwmchip %s not found at %s", pwmChip, chipPath)
	}

	h := &SysfsPWM{
		chipPath:   chipPath,
		exportPath: fmt.Sprintf("%s/export", chipPath),
		pinPath:    fmt.Sprintf("%s/pwm0", chipPath),
	}

	if _, err := os.Stat(h.pinPath); os.IsNotExist(err) {
		if err := os.WriteFile(h.exportPath, []byte("0"), 0644); err != nil {
			if !strings.Contains(err.Error(), "device or resource busy") {
				return nil, fmt.Errorf("failed to export pwm0 on chip %s: %w", pwmChip, err)
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return h, nil
}

func (h *SysfsPWM) Start(dutyPercent int, freqHz int) error {
	if dutyPercent < 0 {
		dutyPercent = 0
	}
	if dutyPercent > 100 {
		dutyPercent = 100
	}
	if freqHz <= 0 {
		return fmt.Errorf("invalid PWM frequency %d", freqHz)
	}
	periodNs := int64(1e9 / float64(freqHz))
	dutyNs := int64(float64(periodNs) * float64(dutyPercent) / 100.0)

	if err := os.WriteFile(fmt.Sprintf("%s/period", h.pinPath), []byte(strconv.FormatInt(periodNs, 10)), 0644); err != nil {
		return fmt.Errorf("failed to set PWM period: %w", err)
	}
	if err := os.WriteFile(fmt.Sprintf("%s/duty_cycle", h.pinPath), []byte(strconv.FormatInt(dutyNs, 10)), 0644); err != nil {
		return fmt.Errorf("failed to set PWM duty cycle: %w", err)
	}
	if err := os.WriteFile(fmt.Sprintf("%s/enable", h.pinPath), []byte("1"), 0644); err != nil {
		return fmt.Errorf("failed to enable PWM: %w", err)
	}
	return nil
}

func (h *SysfsPWM) Stop() error {
	if err := os.WriteFile(fmt.Sprintf("%s/enable", h.pinPath), []byte("0"), 0644); err != nil {
		log.WithError(err).Warn("failed to disable PWM")
	}
	return nil
}

func (h *SysfsPWM) Cleanup() error {
	unexportPath := fmt.Sprintf("%s/unexport", h.chipPath)
	if err := os.WriteFile(unexportPath, []byte("0"), 0644); err != nil {
		log.WithError(err).Warn("failed to unexport pwm0")
	}
	return nil
}
