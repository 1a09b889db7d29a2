package hardware

import "sync"

// FakeGPIO is an in-memory GPIO used by unit tests. It records the
// sequence of levels written so tests can assert the baster drove the
// pin as expected.
type FakeGPIO struct {
	mu         sync.Mutex
	Configured bool
	Level      Level
	History    []Level
}

func NewFakeGPIO() *FakeGPIO {
	return &FakeGPIO{}
}

func (g *FakeGPIO) ConfigureOutput() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Configured = true
	return nil
}

func (g *FakeGPIO) Write(level Level) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Level = level
	g.History = append(g.History, level)
	return nil
}

func (g *FakeGPIO) CurrentLevel() Level {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Level
}

// FakePWM is an in-memory PWM used by unit tests. It records every
// accepted duty/frequency pair so tests can assert the blower's
// cold-start kick and low-speed toggle sequencing.
type FakePWM struct {
	mu        sync.Mutex
	Duty      int
	FreqHz    int
	Started   bool
	Stopped   bool
	CleanedUp bool
	History   []int
}

func NewFakePWM() *FakePWM {
	return &FakePWM{}
}

func (p *FakePWM) Start(dutyPercent int, freqHz int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Duty = dutyPercent
	p.FreqHz = freqHz
	p.Started = true
	p.History = append(p.History, dutyPercent)
	return nil
}

func (p *FakePWM) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Duty = 0
	p.Stopped = true
	p.History = append(p.History, 0)
	return nil
}

func (p *FakePWM) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CleanedUp = true
	return nil
}

func (p *FakePWM) CurrentDuty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Duty
}

// FakeADC is an in-memory ADC used by unit tests. Values can be set per
// channel; Read returns the last value set for that channel (0 by
// default).
type FakeADC struct {
	mu     sync.Mutex
	values map[string]float64
}

func NewFakeADC() *FakeADC {
	return &FakeADC{values: make(map[string]float64)}
}

func (a *FakeADC) Setup() error { return nil }

func (a *FakeADC) Set(channel string, v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[channel] = v
}

func (a *FakeADC) Read(channel string) (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.values[channel], nil
}
