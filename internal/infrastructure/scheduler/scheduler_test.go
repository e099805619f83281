package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/domain/risk"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/memory"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Description() string           { return "test job " + j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

type jobObserver struct {
	mu   sync.Mutex
	runs map[string][]bool
}

func (o *jobObserver) ObserveJob(name string, success bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = make(map[string][]bool)
	}
	o.runs[name] = append(o.runs[name], success)
}

func TestEvery(t *testing.T) {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e := Every(time.Hour)
	assert.Equal(t, at.Add(time.Hour), e.Next(at))
	assert.Equal(t, "@every 1h0m0s", e.String())
}

func TestRegister(t *testing.T) {
	s := New(Config{})
	job := funcJob{name: "a", run: func(context.Context) error { return nil }}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(funcJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
	assert.Equal(t, "@every 1m0s", jobs[0].Schedule)

	assert.ErrorIs(t, s.SetEnabled("missing", false), ErrJobNotFound)
	require.NoError(t, s.SetEnabled("a", false))
	assert.False(t, s.ListJobs()[0].Enabled)
}

func TestRunNow(t *testing.T) {
	obs := &jobObserver{}
	s := New(Config{Observer: obs})

	boom := errors.New("boom")
	require.NoError(t, s.Register(funcJob{name: "ok", run: func(context.Context) error { return nil }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "fail", run: func(context.Context) error { return boom }}, Every(time.Hour)))
	require.NoError(t, s.Register(funcJob{name: "panic", run: func(context.Context) error { panic("bad") }}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	_, err = s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)

	_, err = s.RunNow(context.Background(), "panic")
	assert.ErrorContains(t, err, "job panicked")

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "panic", history[2].JobName)
	assert.Len(t, s.History(1), 1)

	assert.Equal(t, []bool{true}, obs.runs["ok"])
	assert.Equal(t, []bool{false}, obs.runs["fail"])

	for _, info := range s.ListJobs() {
		assert.Equal(t, int64(1), info.RunCount, info.Name)
	}
}

func TestStartStop_RunsDueJobs(t *testing.T) {
	var runs atomic.Int32
	s := New(Config{TickInterval: 5 * time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "tick", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(10*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestStop_CancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	s := New(Config{TickInterval: 5 * time.Millisecond})
	require.NoError(t, s.Register(funcJob{name: "slow", run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}
	require.NoError(t, s.Stop())

	history := s.History(0)
	require.NotEmpty(t, history)
	assert.ErrorIs(t, history[0].Error, context.Canceled)
}

func TestPruneAssessmentsJob(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := memory.NewRiskAssessmentRepository()

	for i, age := range []time.Duration{48 * time.Hour, 12 * time.Hour, time.Hour} {
		require.NoError(t, repo.Save(ctx, &risk.Assessment{
			ID:         string(rune('a' + i)),
			Subject:    risk.ProtocolSubject("aave"),
			Result:     risk.Result{SubjectType: risk.SubjectProtocol, SubjectKey: "aave", Level: risk.LevelLow},
			AssessedAt: now.Add(-age),
		}))
	}

	job, err := NewPruneAssessmentsJob(repo, 24*time.Hour, nil)
	require.NoError(t, err)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(ctx))

	left, err := repo.List(ctx, risk.AssessmentFilter{})
	require.NoError(t, err)
	assert.Len(t, left, 2)

	_, err = NewPruneAssessmentsJob(repo, 0, nil)
	assert.Error(t, err)
}
