package cron

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Parley/internal/job"
)

type noopHeartbeater struct{}

func (noopHeartbeater) Heartbeat(context.Context) error { return nil }

func TestRegisterJobs(t *testing.T) {
	mgr := NewCronManager("@every 1m", job.NewPresenceJob(noopHeartbeater{}))
	require.NoError(t, mgr.RegisterJobs())
	assert.Len(t, mgr.engine.Entries(), 1)

	bad := NewCronManager("not a schedule", job.NewPresenceJob(noopHeartbeater{}))
	assert.Error(t, bad.RegisterJobs())
}

type countingHeartbeater struct {
	calls atomic.Int32
}

func (h *countingHeartbeater) Heartbeat(context.Context) error {
	h.calls.Add(1)
	return nil
}

func TestInitCronBeatsImmediately(t *testing.T) {
	hb := &countingHeartbeater{}
	mgr := NewCronManager("@every 1h", job.NewPresenceJob(hb))
	require.NoError(t, InitCron(mgr))
	defer mgr.Stop()

	assert.EqualValues(t, 1, hb.calls.Load())
	assert.Len(t, mgr.engine.Entries(), 1)

	assert.NoError(t, InitCron(nil))
	assert.Error(t, InitCron(NewCronManager("bogus", job.NewPresenceJob(hb))))
	assert.EqualValues(t, 1, hb.calls.Load())
}
