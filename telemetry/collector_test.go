package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStats struct {
	calls atomic.Int32
	err   error
}

func (f *fakeStats) LogStats(ctx context.Context) (uint64, uint64, error) {
	f.calls.Add(1)
	return 3, 9, f.err
}

func TestMetricsCollector_CollectsUntilStopped(t *testing.T) {
	provider := &fakeStats{}
	mc := NewMetricsCollector(provider, 10*time.Millisecond)
	mc.Start()

	assert.Eventually(t, func() bool { return provider.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	mc.Stop()
	mc.Stop() // idempotent

	calls := provider.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, provider.calls.Load(), "no collection after stop")
}

func TestMetricsCollector_ToleratesErrorsAndNilProvider(t *testing.T) {
	provider := &fakeStats{err: errors.New("store closed")}
	mc := NewMetricsCollector(provider, time.Hour)
	mc.collect()
	assert.Equal(t, int32(1), provider.calls.Load())

	NewMetricsCollector(nil, time.Hour).collect()
}

func TestNoopMetricsBeforeInit(t *testing.T) {
	// Default vars must be safe to use without InitializeTelemetry
	PublishTotal.With("success").Inc()
	PollDurationSeconds.Observe(0.1)
	ActiveSubscriptions.Inc()
	ActiveSubscriptions.Dec()
	HandlerPanicsTotal.With("callbacks").Add(1)
	assert.Nil(t, GetMetricsHandler())
}
