// Package command contains write operations (CQRS - Commands).
package command

import (
	"time"

	"github.com/defi-academy/navigator/internal/domain/shared"
)

// Observer receives operational counters. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveActivity(kind, outcome string)
	ObserveQuizAttempt(quizID string, passed bool)
	ObserveAssessment(subjectType, level string, d time.Duration)
	ObserveCache(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveActivity(string, string)                  {}
func (nopObserver) ObserveQuizAttempt(string, bool)                 {}
func (nopObserver) ObserveAssessment(string, string, time.Duration) {}
func (nopObserver) ObserveCache(string)                             {}

// Activity outcomes reported to ObserveActivity.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Cache results reported to ObserveCache.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheBypass     = "bypass"
	CacheWriteError = "write_error"
)

type nopPublisher struct{}

func (nopPublisher) Publish(shared.Event) error { return nil }
