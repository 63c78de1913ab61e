// Package vardiff tracks each downstream connection's recent share-submit
// timing and retargets its mining difficulty to hold shares near a
// configured interval. The translator seeds each connection from the
// Bridge's difficulty value; a retargeted value is not passed back to the
// Bridge and is not sent as a V1 mining.set_difficulty notification.
package vardiff

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Config bounds how a Manager retargets difficulty.
type Config struct {
	TargetShareTime   time.Duration // desired time between shares
	RetargetInterval  time.Duration // minimum time between retargets
	VariancePercent   float64       // deadband width, e.g. 30 = ±30%
	MinDifficulty     float64
	MaxDifficulty     float64
	InitialDifficulty float64
	ShareWindow       int // shares considered per retarget decision
}

// DefaultConfig returns the bounds a role boots with absent an override.
func DefaultConfig() Config {
	return Config{
		TargetShareTime:   10 * time.Second,
		RetargetInterval:  30 * time.Second,
		VariancePercent:   30,
		MinDifficulty:     0.001,
		MaxDifficulty:     1_000_000,
		InitialDifficulty: 0.01,
		ShareWindow:       5,
	}
}

// Validate rejects a Config that could never converge.
func (c Config) Validate() error {
	switch {
	case c.TargetShareTime <= 0:
		return errors.New("vardiff: target share time must be positive")
	case c.RetargetInterval <= 0:
		return errors.New("vardiff: retarget interval must be positive")
	case c.MinDifficulty <= 0:
		return errors.New("vardiff: min difficulty must be positive")
	case c.MaxDifficulty <= 0:
		return errors.New("vardiff: max difficulty must be positive")
	case c.MinDifficulty > c.MaxDifficulty:
		return errors.New("vardiff: min difficulty cannot exceed max difficulty")
	case c.VariancePercent < 0 || c.VariancePercent > 100:
		return errors.New("vardiff: variance percent must be in [0, 100]")
	}
	return nil
}

type downstreamState struct {
	difficulty   float64
	shareTimes   []time.Duration
	lastRetarget time.Time
	totalShares  int64
}

// Manager holds one downstreamState per downstream connection id, each
// independently retargeted as its own shares arrive.
type Manager struct {
	config Config
	mu     sync.RWMutex
	conns  map[string]*downstreamState
}

// NewManager builds a Manager bound to config.
func NewManager(config Config) *Manager {
	return &Manager{config: config, conns: make(map[string]*downstreamState)}
}

// GetDifficulty returns connID's current difficulty, or the configured
// initial difficulty if connID hasn't submitted a share yet.
func (m *Manager) GetDifficulty(connID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.conns[connID]; ok {
		return s.difficulty
	}
	return m.config.InitialDifficulty
}

// SetDifficulty pins connID's difficulty directly, clamped to bounds.
func (m *Manager) SetDifficulty(connID string, difficulty float64) error {
	difficulty = m.clamp(difficulty)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.conns[connID]
	if !ok {
		s = &downstreamState{shareTimes: make([]time.Duration, 0, m.config.ShareWindow)}
		m.conns[connID] = s
	}
	s.difficulty = difficulty
	return nil
}

// RecordShare records the observed interval since connID's previous share
// and retargets once ShareWindow samples have accumulated and
// RetargetInterval has elapsed since the last retarget.
func (m *Manager) RecordShare(connID string, interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.conns[connID]
	if !ok {
		s = &downstreamState{
			difficulty:   m.config.InitialDifficulty,
			shareTimes:   make([]time.Duration, 0, m.config.ShareWindow),
			lastRetarget: time.Now(),
		}
		m.conns[connID] = s
	}

	s.shareTimes = append(s.shareTimes, interval)
	if len(s.shareTimes) > m.config.ShareWindow {
		s.shareTimes = s.shareTimes[1:]
	}
	s.totalShares++

	if len(s.shareTimes) >= m.config.ShareWindow && time.Since(s.lastRetarget) >= m.config.RetargetInterval {
		m.retarget(s)
		s.lastRetarget = time.Now()
	}
}

// retarget applies a variance-deadbanded adjustment around the median
// observed share interval, trimming outliers so a handful of unusually
// fast or slow shares can't swing the target on their own.
func (m *Manager) retarget(s *downstreamState) {
	observed := median(s.shareTimes)
	target := m.config.TargetShareTime

	half := time.Duration(float64(target) * m.config.VariancePercent / 100.0)
	if observed >= target-half && observed <= target+half {
		return
	}

	ratio := float64(target) / float64(observed)
	const maxChange = 0.15
	if ratio > 1+maxChange {
		ratio = 1 + maxChange
	} else if ratio < 1-maxChange {
		ratio = 1 - maxChange
	}

	const smoothing = 0.4
	ratio = ratio*smoothing + (1 - smoothing)

	next := m.clamp(s.difficulty * ratio)
	if delta := (next - s.difficulty) / s.difficulty; delta < 0.02 && delta > -0.02 {
		return
	}
	s.difficulty = next
}

// median trims the top/bottom 10% of samples (when there are enough to
// trim) before returning the midpoint, so isolated stalls or bursts don't
// dominate the retarget decision.
func median(times []time.Duration) time.Duration {
	if len(times) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if trim := len(sorted) / 10; trim > 0 && len(sorted) > 10 {
		sorted = sorted[trim : len(sorted)-trim]
	}

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func (m *Manager) clamp(difficulty float64) float64 {
	if difficulty < m.config.MinDifficulty {
		return m.config.MinDifficulty
	}
	if difficulty > m.config.MaxDifficulty {
		return m.config.MaxDifficulty
	}
	return difficulty
}

// GetTargetShareTime returns the configured target share interval.
func (m *Manager) GetTargetShareTime() time.Duration { return m.config.TargetShareTime }

// GetConfig returns the Manager's configuration.
func (m *Manager) GetConfig() Config { return m.config }

// RemoveDownstream drops connID's tracked state, e.g. once its connection
// closes.
func (m *Manager) RemoveDownstream(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, connID)
}

// GetDownstreamStats reports connID's current difficulty and lifetime
// share count.
func (m *Manager) GetDownstreamStats(connID string) (difficulty float64, totalShares int64, exists bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.conns[connID]
	if !ok {
		return m.config.InitialDifficulty, 0, false
	}
	return s.difficulty, s.totalShares, true
}
