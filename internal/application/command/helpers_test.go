package command

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/defi-academy/navigator/internal/application/saga"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/scoring"
	"github.com/defi-academy/navigator/internal/domain/shared"
	"github.com/defi-academy/navigator/internal/infrastructure/catalog"
	"github.com/defi-academy/navigator/internal/infrastructure/persistence/memory"
	"github.com/defi-academy/navigator/pkg/logger"
	"github.com/defi-academy/navigator/pkg/timeutil"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingObserver struct {
	mu          sync.Mutex
	activities  map[string]int
	attempts    map[string]int
	assessments int
	cache       map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		activities: map[string]int{},
		attempts:   map[string]int{},
		cache:      map[string]int{},
	}
}

func (o *recordingObserver) ObserveActivity(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activities[kind+"/"+outcome]++
}

func (o *recordingObserver) ObserveQuizAttempt(quizID string, passed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if passed {
		o.attempts[quizID+"/passed"]++
	} else {
		o.attempts[quizID+"/failed"]++
	}
}

func (o *recordingObserver) ObserveAssessment(string, string, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.assessments++
}

func (o *recordingObserver) ObserveCache(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cache[result]++
}

func (o *recordingObserver) cacheCount(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cache[result]
}

// progressFixture wires the learning-side handlers over in-memory storage.
type progressFixture struct {
	catalog      *catalog.Catalog
	learners     *memory.LearnerRepository
	attempts     *memory.QuizAttemptRepository
	achievements *memory.AchievementRepository
	publisher    *recordingPublisher
	observer     *recordingObserver
	activities   *RecordActivityHandler
	quizzes      *SubmitQuizHandler
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	return newProgressFixtureWith(t, nil)
}

func newProgressFixtureWith(t *testing.T, learners progress.Repository) *progressFixture {
	t.Helper()

	cat, err := catalog.LoadDefault()
	require.NoError(t, err)
	tracker, err := progress.NewTracker(scoring.MustNewCalculator(scoring.DefaultConfig()), cat.Totals())
	require.NoError(t, err)

	f := &progressFixture{
		catalog:      cat,
		learners:     memory.NewLearnerRepository(),
		attempts:     memory.NewQuizAttemptRepository(),
		achievements: memory.NewAchievementRepository(),
		publisher:    &recordingPublisher{},
		observer:     newRecordingObserver(),
	}
	if learners == nil {
		learners = f.learners
	}

	clock := timeutil.FixedClock(testNow)
	flow := saga.NewAchievementFlowSaga(cat, f.achievements, f.attempts, f.publisher, saga.AchievementFlowConfig{
		Enabled: true,
		Clock:   clock,
		Logger:  logger.Nop(),
	})
	f.activities = NewRecordActivityHandler(learners, tracker, flow, f.publisher, RecordActivityHandlerConfig{
		Observer: f.observer,
		Logger:   logger.Nop(),
		Clock:    clock,
	})
	f.quizzes = NewSubmitQuizHandler(cat, f.attempts, learners, f.activities, flow, f.publisher, SubmitQuizHandlerConfig{
		Observer: f.observer,
		Logger:   logger.Nop(),
		Clock:    clock,
	})
	return f
}
