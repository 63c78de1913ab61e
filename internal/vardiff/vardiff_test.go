package vardiff

import (
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
		{
			name: "valid",
			config: Config{
				TargetShareTime: 10 * time.Second, RetargetInterval: 30 * time.Second,
				VariancePercent: 30, MinDifficulty: 0.001, MaxDifficulty: 1_000_000,
			},
		},
		{
			name: "zero target time",
			config: Config{
				TargetShareTime: 0, RetargetInterval: 30 * time.Second,
				VariancePercent: 30, MinDifficulty: 0.001, MaxDifficulty: 1_000_000,
			},
			wantErr: true,
		},
		{
			name: "min exceeds max",
			config: Config{
				TargetShareTime: 10 * time.Second, RetargetInterval: 30 * time.Second,
				VariancePercent: 30, MinDifficulty: 1000, MaxDifficulty: 100,
			},
			wantErr: true,
		},
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

func TestManager_InitialDifficulty(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	assert.Equal(t, cfg.InitialDifficulty, m.GetDifficulty("conn-1"))
}

func TestManager_SetDifficulty(t *testing.T) {
	m := NewManager(DefaultConfig())

	assert.NoError(t, m.SetDifficulty("conn-1", 0.5))
	assert.Equal(t, 0.5, m.GetDifficulty("conn-1"))
}

func TestManager_SetDifficultyClampsToBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDifficulty = 0.01
	cfg.MaxDifficulty = 100
	m := NewManager(cfg)

	require := assert.New(t)
	require.NoError(m.SetDifficulty("conn-1", 0.001))
	require.GreaterOrEqual(m.GetDifficulty("conn-1"), cfg.MinDifficulty)

	require.NoError(m.SetDifficulty("conn-2", 1000))
	require.LessOrEqual(m.GetDifficulty("conn-2"), cfg.MaxDifficulty)
}

func TestManager_RetargetsUpWhenSharesArriveTooFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetShareTime = 10 * time.Second
	cfg.VariancePercent = 30
	cfg.InitialDifficulty = 1.0
	cfg.RetargetInterval = time.Millisecond
	cfg.ShareWindow = 3
	m := NewManager(cfg)

	require := assert.New(t)
	require.NoError(m.SetDifficulty("conn-1", 1.0))

	for i := 0; i < 5; i++ {
		m.RecordShare("conn-1", 2*time.Second)
		time.Sleep(2 * time.Millisecond)
	}

	require.Greater(m.GetDifficulty("conn-1"), cfg.InitialDifficulty)
}

func TestManager_RetargetsDownWhenSharesArriveTooSlow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetShareTime = 10 * time.Second
	cfg.VariancePercent = 30
	cfg.InitialDifficulty = 1.0
	m := NewManager(cfg)

	require := assert.New(t)
	require.NoError(m.SetDifficulty("conn-1", 1.0))

	for i := 0; i < 5; i++ {
		m.RecordShare("conn-1", 30*time.Second)
	}

	require.Less(m.GetDifficulty("conn-1"), 1.0)
}

func TestManager_HoldsSteadyWithinVariance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetShareTime = 10 * time.Second
	cfg.VariancePercent = 30
	cfg.InitialDifficulty = 1.0
	m := NewManager(cfg)

	require := assert.New(t)
	require.NoError(m.SetDifficulty("conn-1", 1.0))

	for i := 0; i < 10; i++ {
		m.RecordShare("conn-1", 9*time.Second)
	}

	diff := m.GetDifficulty("conn-1")
	require.InDelta(1.0, diff, 0.1)
}

func TestManager_GetTargetShareTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetShareTime = 15 * time.Second
	m := NewManager(cfg)

	assert.Equal(t, 15*time.Second, m.GetTargetShareTime())
}

func TestManager_ConcurrentAccessIsSafe(t *testing.T) {
	m := NewManager(DefaultConfig())
	done := make(chan struct{})

	for i := 0; i < 10; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			connID := "conn-" + string(rune('0'+id))
			for j := 0; j < 100; j++ {
				m.GetDifficulty(connID)
				m.SetDifficulty(connID, float64(j)*0.01)
				m.RecordShare(connID, time.Duration(j)*time.Second)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_RemoveDownstream(t *testing.T) {
	cfg := DefaultConfig()
	m := NewManager(cfg)

	require := assert.New(t)
	require.NoError(m.SetDifficulty("conn-1", 5.0))
	require.Equal(5.0, m.GetDifficulty("conn-1"))

	m.RemoveDownstream("conn-1")
	require.Equal(cfg.InitialDifficulty, m.GetDifficulty("conn-1"))
}

func TestManager_GetDownstreamStats(t *testing.T) {
	m := NewManager(DefaultConfig())

	_, _, exists := m.GetDownstreamStats("conn-1")
	assert.False(t, exists)

	m.RecordShare("conn-1", 5*time.Second)
	m.RecordShare("conn-1", 5*time.Second)
	diff, shares, exists := m.GetDownstreamStats("conn-1")
	assert.True(t, exists)
	assert.Equal(t, int64(2), shares)
	assert.Greater(t, diff, 0.0)
}
