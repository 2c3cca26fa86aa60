package monitor

import (
	"sync"
	"time"
)

const rateWindow = 5

// RequestRateMonitor implements a sliding window (5s) of per-second request counts
type RequestRateMonitor struct {
	buckets    [rateWindow]int
	currentPos int
	lastTick   time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewRequestRateMonitor() *RequestRateMonitor {
	return newRequestRateMonitor(time.Now)
}

func newRequestRateMonitor(now func() time.Time) *RequestRateMonitor {
	return &RequestRateMonitor{lastTick: now(), now: now}
}

// advance moves the window forward to the current second. Caller holds mu.
func (m *RequestRateMonitor) advance() {
	now := m.now()
	elapsed := int(now.Sub(m.lastTick).Seconds())
	if elapsed < 1 {
		return
	}
	if elapsed >= rateWindow {
		for i := range m.buckets {
			m.buckets[i] = 0
		}
		m.currentPos = 0
	} else {
		for i := 0; i < elapsed; i++ {
			m.currentPos = (m.currentPos + 1) % rateWindow
			m.buckets[m.currentPos] = 0
		}
	}
	m.lastTick = m.lastTick.Add(time.Duration(elapsed) * time.Second)
}

// Record adds count requests to the current second bucket
func (m *RequestRateMonitor) Record(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	m.buckets[m.currentPos] += count
}

// GetRPS returns the average requests per second over the window
func (m *RequestRateMonitor) GetRPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()

	sum := 0
	for _, b := range m.buckets {
		sum += b
	}
	return float64(sum) / rateWindow
}
