package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2haed/cs-market/internal/config"
	"github.com/2haed/cs-market/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	calls   int32
	running int32
	overlap int32
	hold    time.Duration
	types   chan string
}

func (r *countingRunner) ParseItems(ctx context.Context, itemType string) (*pipeline.RunReport, error) {
	if atomic.AddInt32(&r.running, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	defer atomic.AddInt32(&r.running, -1)
	atomic.AddInt32(&r.calls, 1)
	if r.types != nil {
		select {
		case r.types <- itemType:
		default:
		}
	}
	select {
	case <-time.After(r.hold):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &pipeline.RunReport{ItemType: itemType}, nil
}

func TestScheduler_RunsBothWithoutOverlap(t *testing.T) {
	r := &countingRunner{hold: 1500 * time.Millisecond, types: make(chan string, 1)}
	s := New(config.ScheduleConfig{Spec: "@every 1s"}, r)
	require.NoError(t, s.Start(context.Background()))

	select {
	case typ := <-r.types:
		assert.Equal(t, config.TypeBoth, typ)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled run did not fire")
	}
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	assert.Zero(t, atomic.LoadInt32(&r.overlap), "runs must not overlap")
	assert.Zero(t, atomic.LoadInt32(&r.running), "Stop must wait for the running pass")
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := New(config.ScheduleConfig{Spec: "not a cron"}, &countingRunner{})
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_TriggerNow(t *testing.T) {
	r := &countingRunner{}
	s := New(config.ScheduleConfig{Spec: "@every 1h"}, r)

	report, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.TypeBoth, report.ItemType)
	assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))
}
