package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/defi-academy/navigator/internal/application/command"
	"github.com/defi-academy/navigator/internal/application/query"
	"github.com/defi-academy/navigator/internal/domain/achievement"
	"github.com/defi-academy/navigator/internal/domain/progress"
	"github.com/defi-academy/navigator/internal/domain/quiz"
	"github.com/defi-academy/navigator/internal/domain/risk"
)

func notConfigured(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Endpoint not configured")
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every check; it is 503 only when the service is not ready.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"healthy": true,
			"ready":   true,
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListQuizzes handles GET /api/v1/quizzes
func (s *Server) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quizzes == nil {
		notConfigured(w, r)
		return
	}
	quizzes := s.deps.Quizzes.List(r.Context(), query.ListQuizzesQuery{
		Topic:      r.URL.Query().Get("topic"),
		Difficulty: r.URL.Query().Get("difficulty"),
	})
	count := len(quizzes)
	writeJSONWithMeta(w, r, http.StatusOK, quizzes, &ResponseMeta{Count: &count})
}

// handleGetQuiz handles GET /api/v1/quizzes/{quizID}
func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quizzes == nil {
		notConfigured(w, r)
		return
	}
	view, err := s.deps.Quizzes.Get(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

type submitQuizRequest struct {
	UserID  string `json:"user_id"`
	Answers []int  `json:"answers"`
}

type submitQuizResponse struct {
	AttemptID       string                 `json:"attempt_id"`
	Result          quiz.AttemptResult     `json:"result"`
	FirstPass       bool                   `json:"first_pass"`
	Progress        *progress.LearnerState `json:"progress,omitempty"`
	LevelChanged    bool                   `json:"level_changed,omitempty"`
	NewAchievements []achievementBrief     `json:"new_achievements"`
	SubmittedAt     time.Time              `json:"submitted_at"`
}

// handleSubmitQuiz handles POST /api/v1/quizzes/{quizID}/submit
func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitQuiz == nil {
		notConfigured(w, r)
		return
	}

	var req submitQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.SubmitQuiz.Handle(r.Context(), command.SubmitQuizCommand{
		UserID:        req.UserID,
		QuizID:        chi.URLParam(r, "quizID"),
		Answers:       req.Answers,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := submitQuizResponse{
		AttemptID:       res.Attempt.ID,
		Result:          res.Attempt.Result,
		FirstPass:       res.FirstPass,
		NewAchievements: briefs(res.NewAchievements),
		SubmittedAt:     res.Attempt.SubmittedAt,
	}
	if res.Progress != nil {
		state := res.Progress.State
		resp.Progress = &state
		resp.LevelChanged = res.Progress.LevelChanged
	}
	writeJSON(w, r, http.StatusCreated, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recordActivityRequest struct {
	Kind       string    `json:"kind"`
	RefID      string    `json:"ref_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type recordActivityResponse struct {
	Kind            progress.ActivityKind `json:"kind"`
	RefID           string                `json:"ref_id"`
	Duplicate       bool                  `json:"duplicate"`
	State           progress.LearnerState `json:"state"`
	Streak          progress.Streak       `json:"streak"`
	LevelChanged    bool                  `json:"level_changed"`
	NewAchievements []achievementBrief    `json:"new_achievements"`
}

type achievementBrief struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Icon   string             `json:"icon,omitempty"`
	Rarity achievement.Rarity `json:"rarity"`
	Points int                `json:"points"`
}

func briefs(defs []achievement.Definition) []achievementBrief {
	out := make([]achievementBrief, 0, len(defs))
	for _, d := range defs {
		out = append(out, achievementBrief{ID: d.ID, Name: d.Name, Icon: d.Icon, Rarity: d.Rarity, Points: d.Points})
	}
	return out
}

// handleRecordActivity handles POST /api/v1/learners/{userID}/activities
func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordActivity == nil {
		notConfigured(w, r)
		return
	}

	var req recordActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.RecordActivity.Handle(r.Context(), command.RecordActivityCommand{
		UserID:        chi.URLParam(r, "userID"),
		Kind:          req.Kind,
		RefID:         req.RefID,
		OccurredAt:    req.OccurredAt,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, r, status, recordActivityResponse{
		Kind:            res.Kind,
		RefID:           res.RefID,
		Duplicate:       res.Duplicate,
		State:           res.State,
		Streak:          res.Streak,
		LevelChanged:    res.LevelChanged,
		NewAchievements: briefs(res.NewAchievements),
	})
}

// handleGetProgress handles GET /api/v1/learners/{userID}/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.Progress == nil {
		notConfigured(w, r)
		return
	}
	dto, err := s.deps.Progress.Handle(r.Context(), query.GetProgressQuery{UserID: chi.URLParam(r, "userID")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleListAchievements handles GET /api/v1/learners/{userID}/achievements
func (s *Server) handleListAchievements(w http.ResponseWriter, r *http.Request) {
	if s.deps.Achievements == nil {
		notConfigured(w, r)
		return
	}
	unlocked, err := queryBool(r, "unlocked")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dto, err := s.deps.Achievements.Handle(r.Context(), query.ListAchievementsQuery{
		UserID:       chi.URLParam(r, "userID"),
		UnlockedOnly: unlocked,
		Category:     r.URL.Query().Get("category"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// handleListQuizAttempts handles GET /api/v1/learners/{userID}/quiz-attempts
func (s *Server) handleListQuizAttempts(w http.ResponseWriter, r *http.Request) {
	if s.deps.QuizAttempts == nil {
		notConfigured(w, r)
		return
	}

	q := query.ListQuizAttemptsQuery{
		UserID: chi.URLParam(r, "userID"),
		QuizID: r.URL.Query().Get("quiz_id"),
	}
	var err error
	if q.PassedOnly, err = queryBool(r, "passed"); err == nil {
		if q.Since, err = queryTime(r, "since"); err == nil {
			if q.Limit, err = queryInt(r, "limit"); err == nil {
				q.Offset, err = queryInt(r, "offset")
			}
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	attempts, err := s.deps.QuizAttempts.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count := len(attempts)
	writeJSONWithMeta(w, r, http.StatusOK, attempts, &ResponseMeta{Count: &count, Limit: q.Limit, Offset: q.Offset})
}

// ══════════════════════════════════════════════════════════════════════════════
// RISK HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type assessRiskRequest struct {
	UserID  string       `json:"user_id"`
	Subject risk.Subject `json:"subject"`
	Inputs  risk.Inputs  `json:"inputs"`
}

// handleAssessRisk handles POST /api/v1/risk/assess
func (s *Server) handleAssessRisk(w http.ResponseWriter, r *http.Request) {
	if s.deps.AssessRisk == nil {
		notConfigured(w, r)
		return
	}

	var req assessRiskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	a, err := s.deps.AssessRisk.Handle(r.Context(), command.AssessRiskCommand{
		UserID:        req.UserID,
		Subject:       req.Subject,
		Inputs:        req.Inputs,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, a)
}

type assessRiskBatchRequest struct {
	UserID string              `json:"user_id"`
	Items  []command.BatchItem `json:"items"`
}

// handleAssessRiskBatch handles POST /api/v1/risk/assess/batch
func (s *Server) handleAssessRiskBatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.AssessRisk == nil {
		notConfigured(w, r)
		return
	}

	var req assessRiskBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.deps.AssessRisk.HandleBatch(r.Context(), command.AssessRiskBatchCommand{
		UserID:        req.UserID,
		Items:         req.Items,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count := len(results)
	writeJSONWithMeta(w, r, http.StatusOK, results, &ResponseMeta{Count: &count})
}

// handleListProtocols handles GET /api/v1/risk/protocols
func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	if s.deps.Protocols == nil {
		notConfigured(w, r)
		return
	}
	s.writeReference(w, r, s.deps.Protocols.Handle)
}

// handleListTokens handles GET /api/v1/risk/tokens
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tokens == nil {
		notConfigured(w, r)
		return
	}
	s.writeReference(w, r, s.deps.Tokens.Handle)
}

func (s *Server) writeReference(w http.ResponseWriter, r *http.Request, list func(context.Context, query.ListReferenceQuery) ([]query.ReferenceDTO, error)) {
	entries, err := list(r.Context(), query.ListReferenceQuery{
		Level: strings.ToLower(r.URL.Query().Get("level")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count := len(entries)
	writeJSONWithMeta(w, r, http.StatusOK, entries, &ResponseMeta{Count: &count})
}

// handleListAssessments handles GET /api/v1/risk/assessments
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assessments == nil {
		notConfigured(w, r)
		return
	}

	params := r.URL.Query()
	q := query.ListRiskAssessmentsQuery{
		UserID:      params.Get("user_id"),
		SubjectType: params.Get("subject_type"),
		SubjectKey:  params.Get("subject_key"),
		Level:       strings.ToLower(params.Get("level")),
	}
	var err error
	if q.Since, err = queryTime(r, "since"); err == nil {
		if q.Limit, err = queryInt(r, "limit"); err == nil {
			q.Offset, err = queryInt(r, "offset")
		}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	assessments, err := s.deps.Assessments.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	count := len(assessments)
	writeJSONWithMeta(w, r, http.StatusOK, assessments, &ResponseMeta{Count: &count, Limit: q.Limit, Offset: q.Offset})
}
