// Package hardware defines the narrow GPIO/PWM/ADC contract the control
// stack is built against (spec.md §6) and provides a real periph.io-
// backed implementation plus in-memory fakes used throughout the unit
// tests.
package hardware

// Level is a GPIO output level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// GPIO claims and drives a single digital output pin. Matches the
// teacher's use of periph.io/x/conn/v3/gpio.PinIO.Out, narrowed to the
// output-only subset the baster's solenoid needs.
type GPIO interface {
	ConfigureOutput() error
	Write(level Level) error
}

// PWM drives a single PWM-capable pin at a given frequency.
type PWM interface {
	// Start begins (or updates) PWM output at dutyPercent (0-100) and
	// freqHz.
	Start(dutyPercent int, freqHz int) error
	// Stop drives the pin to a constant low / disables the PWM engine.
	Stop() error
	// Cleanup releases any OS-level resources (sysfs export, etc). Only
	// called once, at process shutdown.
	Cleanup() error
}

// ADC reads a single analog-to-digital channel. Modeled on periph.io's
// experimental ads1x15.AnalogPin (Range/Read shape), narrowed to the
// normalized reading the thermistor math in probe.go needs.
type ADC interface {
	// Setup prepares the ADC subsystem (one-time effect, analogous to
	// the spec's adc_setup()).
	Setup() error
	// Read returns a normalized reading in [0,1) for the given channel.
	Read(channel string) (float64, error)
}
