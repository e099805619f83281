package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Progress events
	EventActivityRecorded EventType = "progress.activity_recorded"
	EventLevelChanged     EventType = "progress.level_changed"

	// Quiz events
	EventQuizGraded EventType = "quiz.graded"

	// Achievement events
	EventAchievementUnlocked EventType = "achievement.unlocked"

	// Risk events
	EventRiskAssessed EventType = "risk.assessed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityRecordedEvent is emitted after a learner's counters change.
type ActivityRecordedEvent struct {
	BaseEvent
	Kind            string  `json:"kind"`
	RefID           string  `json:"ref_id"`
	ProgressPercent float64 `json:"progress_percent"`
	LevelTier       string  `json:"level_tier"`
}

// Payload implements Event interface.
func (e ActivityRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":             e.Kind,
		"ref_id":           e.RefID,
		"progress_percent": e.ProgressPercent,
		"level_tier":       e.LevelTier,
	}
}

// NewActivityRecordedEvent creates a new ActivityRecordedEvent.
func NewActivityRecordedEvent(userID, kind, refID string, percent float64, tier string, at time.Time) ActivityRecordedEvent {
	return ActivityRecordedEvent{
		BaseEvent:       NewBaseEvent(EventActivityRecorded, userID, at),
		Kind:            kind,
		RefID:           refID,
		ProgressPercent: percent,
		LevelTier:       tier,
	}
}

// LevelChangedEvent is emitted when a learner crosses a tier boundary.
type LevelChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// Payload implements Event interface.
func (e LevelChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from": e.From,
		"to":   e.To,
	}
}

// NewLevelChangedEvent creates a new LevelChangedEvent.
func NewLevelChangedEvent(userID, from, to string, at time.Time) LevelChangedEvent {
	return LevelChangedEvent{
		BaseEvent: NewBaseEvent(EventLevelChanged, userID, at),
		From:      from,
		To:        to,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quiz Events
// ═══════════════════════════════════════════════════════════════════════════

// QuizGradedEvent is emitted for every stored quiz attempt.
type QuizGradedEvent struct {
	BaseEvent
	AttemptID    string `json:"attempt_id"`
	QuizID       string `json:"quiz_id"`
	ScorePercent int    `json:"score_percent"`
	Passed       bool   `json:"passed"`
}

// Payload implements Event interface.
func (e QuizGradedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"attempt_id":    e.AttemptID,
		"quiz_id":       e.QuizID,
		"score_percent": e.ScorePercent,
		"passed":        e.Passed,
	}
}

// NewQuizGradedEvent creates a new QuizGradedEvent.
func NewQuizGradedEvent(userID, attemptID, quizID string, score int, passed bool, at time.Time) QuizGradedEvent {
	return QuizGradedEvent{
		BaseEvent:    NewBaseEvent(EventQuizGraded, userID, at),
		AttemptID:    attemptID,
		QuizID:       quizID,
		ScorePercent: score,
		Passed:       passed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted once per achievement transition to unlocked.
type AchievementUnlockedEvent struct {
	BaseEvent
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Rarity        string `json:"rarity"`
	Points        int    `json:"points"`
}

// Payload implements Event interface.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"achievement_id": e.AchievementID,
		"name":           e.Name,
		"rarity":         e.Rarity,
		"points":         e.Points,
	}
}

// NewAchievementUnlockedEvent creates a new AchievementUnlockedEvent.
func NewAchievementUnlockedEvent(userID, achievementID, name, rarity string, points int, at time.Time) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementUnlocked, userID, at),
		AchievementID: achievementID,
		Name:          name,
		Rarity:        rarity,
		Points:        points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Risk Events
// ═══════════════════════════════════════════════════════════════════════════

// RiskAssessedEvent is emitted after an assessment is produced (cached or not).
type RiskAssessedEvent struct {
	BaseEvent
	SubjectType string `json:"subject_type"`
	SubjectKey  string `json:"subject_key"`
	Overall     int    `json:"overall"`
	Level       string `json:"level"`
	Cached      bool   `json:"cached"`
}

// Payload implements Event interface.
func (e RiskAssessedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"subject_type": e.SubjectType,
		"subject_key":  e.SubjectKey,
		"overall":      e.Overall,
		"level":        e.Level,
		"cached":       e.Cached,
	}
}

// NewRiskAssessedEvent creates a new RiskAssessedEvent. The aggregate is the assessment ID.
func NewRiskAssessedEvent(assessmentID, subjectType, subjectKey string, overall int, level string, cached bool, at time.Time) RiskAssessedEvent {
	return RiskAssessedEvent{
		BaseEvent:   NewBaseEvent(EventRiskAssessed, assessmentID, at),
		SubjectType: subjectType,
		SubjectKey:  subjectKey,
		Overall:     overall,
		Level:       level,
		Cached:      cached,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
