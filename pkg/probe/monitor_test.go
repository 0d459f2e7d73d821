package probe

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/recall/pkg/graph"
)

func TestNewMonitor_Validation(t *testing.T) {
	_, err := NewMonitor(Config{Interval: "@every 5m", Logger: zerolog.Nop()})
	assert.Error(t, err, "status function is required")

	_, err = NewMonitor(Config{
		Status: func(ctx context.Context) (*graph.Status, error) { return &graph.Status{OK: true}, nil },
		Logger: zerolog.Nop(),
	})
	assert.Error(t, err, "interval is required")
}

func TestMonitor_InvalidIntervalRejectedOnStart(t *testing.T) {
	m, err := NewMonitor(Config{
		Status:   func(ctx context.Context) (*graph.Status, error) { return &graph.Status{OK: true}, nil },
		Interval: "every five minutes",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Error(t, m.Start())
}

func TestMonitor_RunsImmediateCheck(t *testing.T) {
	var calls atomic.Int32
	m, err := NewMonitor(Config{
		Status: func(ctx context.Context) (*graph.Status, error) {
			calls.Add(1)
			return &graph.Status{OK: true, Transport: "mcp"}, nil
		},
		Interval: "@every 1h",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Last() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, m.Last().OK)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMonitor_StopWaitsForImmediateCheck(t *testing.T) {
	release := make(chan struct{})
	m, err := NewMonitor(Config{
		Status: func(ctx context.Context) (*graph.Status, error) {
			<-release
			return &graph.Status{OK: true}, nil
		},
		Interval: "@every 1h",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, m.Start())

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a check was still running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the check finished")
	}

	require.NotNil(t, m.Last())
	assert.True(t, m.Last().OK)
}

func TestMonitor_ErrorBecomesUnhealthyStatus(t *testing.T) {
	m, err := NewMonitor(Config{
		Status: func(ctx context.Context) (*graph.Status, error) {
			return nil, errors.New("connection refused")
		},
		Interval: "@every 1h",
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	defer m.Stop()

	require.Eventually(t, func() bool {
		return m.Last() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, m.Last().OK)
	assert.Contains(t, m.Last().Message, "connection refused")
}
