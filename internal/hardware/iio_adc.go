package hardware

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIOADC reads raw ADC samples through the Linux industrial I/O (iio)
// sysfs interface, normalizing each raw reading as raw/maxValue. A
// full-scale reading therefore yields 1.0; the result is not clamped
// to [0,1). The channel identifier is the iio channel's sysfs leaf name
// (e.g. "voltage0"), following the same "opaque string identifier"
// contract as the teacher's pin-name strings.
type IIOADC struct {
	basePath string
	maxValue float64
}

// NewIIOADC targets an iio device directory (e.g.
// "/sys/bus/iio/devices/iio:device0"). maxValue is the ADC's full-scale
// raw reading (e.g. 4095 for a 12-bit converter).
func NewIIOADC(basePath string, maxValue float64) *IIOADC {
	return &IIOADC{basePath: basePath, maxValue: maxValue}
}

func (a *IIOADC) Setup() error {
	if _, err := os.Stat(a.basePath); err != nil {
		return fmt.Errorf("iio device %s not available: %w", a.basePath, err)
	}
	return nil
}

func (a *IIOADC) Read(channel string) (float64, error) {
	path := fmt.Sprintf("%s/in_%s_raw", a.basePath, channel)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading ADC channel %s: %w", channel, err)
	}
	raw, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing ADC channel %s: %w", channel, err)
	}
	if a.maxValue <= 0 {
		return 0, fmt.Errorf("invalid ADC max value %v", a.maxValue)
	}
	return raw / a.maxValue, nil
}
