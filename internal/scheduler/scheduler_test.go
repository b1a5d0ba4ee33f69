package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "a"}))
	require.NoError(t, s.AddJob("", &countingJob{name: "manual"}))
	assert.ElementsMatch(t, []string{"a", "manual"}, s.JobNames())

	assert.Error(t, s.AddJob("@every 1h", &countingJob{name: "a"}), "duplicate name")
	assert.Error(t, s.AddJob("not a schedule", &countingJob{name: "bad"}))
	assert.NotContains(t, s.JobNames(), "bad")
}

func TestScheduler_RunByName(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "sync"}
	failing := &countingJob{name: "broken", err: errors.New("boom")}
	require.NoError(t, s.AddJob("", job))
	require.NoError(t, s.AddJob("", failing))

	require.NoError(t, s.RunByName("sync"))
	assert.Equal(t, int32(1), job.runs.Load())

	assert.EqualError(t, s.RunByName("broken"), "boom")
	assert.ErrorIs(t, s.RunByName("missing"), ErrUnknownJob)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@every 1h", &countingJob{name: "a"}))
	s.Start()
	s.Stop()
}
