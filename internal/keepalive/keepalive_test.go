package keepalive

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"zero interval", Config{Interval: 0, Timeout: 5 * time.Second, MaxMissed: 3}, true},
		{"negative max missed", Config{Interval: 10 * time.Second, Timeout: 5 * time.Second, MaxMissed: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	m.Start("conn-1")
	assert.True(t, m.IsAlive("conn-1"))

	m.Stop("conn-1")
	assert.False(t, m.IsAlive("conn-1"))
}

func TestManager_RecordActivityKeepsConnectionAlive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 50 * time.Millisecond
	cfg.MaxMissed = 2

	m := NewManager(cfg, nil)
	m.Start("conn-1")
	defer m.Stop("conn-1")

	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		m.RecordActivity("conn-1")
	}

	assert.True(t, m.IsAlive("conn-1"))
}

func TestManager_TimesOutAfterMaxMissed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 20 * time.Millisecond
	cfg.MaxMissed = 2

	var mu sync.Mutex
	var dead string
	m := NewManager(cfg, func(connID string) {
		mu.Lock()
		dead = connID
		mu.Unlock()
	})

	m.Start("conn-1")
	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "conn-1", dead)
	assert.False(t, m.IsAlive("conn-1"))
}

func TestManager_ConcurrentAccessIsSafe(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	m := NewManager(cfg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			connID := string(rune('A' + id))
			m.Start(connID)
			for j := 0; j < 10; j++ {
				m.RecordActivity(connID)
				time.Sleep(5 * time.Millisecond)
			}
			m.Stop(connID)
		}(i)
	}
	wg.Wait()
}

func TestManager_GetConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 42 * time.Second
	m := NewManager(cfg, nil)

	assert.Equal(t, 42*time.Second, m.GetConfig().Interval)
}

func TestManager_TracksMultipleConnectionsIndependently(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)

	m.Start("conn-1")
	m.Start("conn-2")
	m.Start("conn-3")
	assert.True(t, m.IsAlive("conn-1"))
	assert.True(t, m.IsAlive("conn-2"))
	assert.True(t, m.IsAlive("conn-3"))

	m.Stop("conn-2")
	assert.True(t, m.IsAlive("conn-1"))
	assert.False(t, m.IsAlive("conn-2"))
	assert.True(t, m.IsAlive("conn-3"))

	m.Stop("conn-1")
	m.Stop("conn-3")
}

func TestManager_GetActiveCount(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	assert.Equal(t, 0, m.GetActiveCount())

	m.Start("conn-1")
	m.Start("conn-2")
	assert.Equal(t, 2, m.GetActiveCount())

	m.Stop("conn-1")
	assert.Equal(t, 1, m.GetActiveCount())
	m.Stop("conn-2")
}
