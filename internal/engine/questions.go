package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"essaybid/internal/config"
	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
	"essaybid/internal/events"
)

// QuestionOptions are parameters for asking a question.
type QuestionOptions struct {
	Title    string
	Body     string
	Category string
}

// AskQuestion opens a pending question on the shared board. Any role may
// ask.
func (e Engine) AskQuestion(ctx context.Context, actor domain.Actor, opts QuestionOptions) (domain.Question, error) {
	if err := policy.Require(actor.Role, policy.ActionAskQuestion); err != nil {
		return domain.Question{}, err
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Question{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if strings.TrimSpace(opts.Body) == "" {
		return domain.Question{}, domain.ValidationError{Field: "body", Reason: "is required"}
	}
	cfg := e.settings(ctx)
	if !cfg.KnownQuestionCategory(opts.Category) {
		return domain.Question{}, domain.ValidationError{Field: "category", Reason: "unknown category " + opts.Category}
	}
	q := domain.Question{
		ID:        uuid.NewString(),
		AuthorID:  actor.ID,
		Title:     opts.Title,
		Body:      opts.Body,
		Category:  opts.Category,
		Status:    domain.StatusPending,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Question{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertQuestion(ctx, tx, q); err != nil {
		return domain.Question{}, err
	}
	if err := e.Events.Append(ctx, tx, "question.asked", "question", q.ID, actor.ID, events.EventPayload{
		"category": q.Category,
	}); err != nil {
		return domain.Question{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// AnswerQuestion records an admin answer on a pending question and tells
// the author.
func (e Engine) AnswerQuestion(ctx context.Context, actor domain.Actor, questionID, answer string) (domain.Question, error) {
	if err := policy.Require(actor.Role, policy.ActionAnswerQuestion); err != nil {
		return domain.Question{}, err
	}
	if strings.TrimSpace(answer) == "" {
		return domain.Question{}, domain.ValidationError{Field: "answer", Reason: "is required"}
	}
	q, err := e.Repo.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Question{}, notFoundAs(err, "question", questionID)
	}
	if q.Status != domain.StatusPending {
		return domain.Question{}, domain.InvalidStateError{Entity: "question", ID: questionID, Status: q.Status, Target: domain.StatusAnswered}
	}
	cfg := e.settings(ctx)
	now := e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Question{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.AnswerQuestionTx(ctx, tx, q.ID, answer, actor.ID, now); err != nil {
		return domain.Question{}, notFoundAs(err, "question", questionID)
	}
	q.Status = domain.StatusAnswered
	q.Answer = &answer
	q.AnsweredBy = &actor.ID
	q.AnsweredAt = &now
	if err := e.notify(ctx, tx, cfg, q.AuthorID, "question_answered", "question.answered", q.Title); err != nil {
		return domain.Question{}, err
	}
	if err := e.Events.Append(ctx, tx, "question.answered", "question", q.ID, actor.ID, nil); err != nil {
		return domain.Question{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

// MarkNotificationRead marks one of the actor's own notifications read.
// Marking twice is harmless.
func (e Engine) MarkNotificationRead(ctx context.Context, actor domain.Actor, notificationID string) (domain.Notification, error) {
	n, err := e.Repo.GetNotification(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, notFoundAs(err, "notification", notificationID)
	}
	if n.UserID != actor.ID {
		return domain.Notification{}, domain.AuthorizationError{Role: actor.Role, Action: "notification.read"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Notification{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.MarkNotificationReadTx(ctx, tx, n.ID); err != nil {
		return domain.Notification{}, notFoundAs(err, "notification", notificationID)
	}
	n.Read = true
	if err := tx.Commit(); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

// UpdateSettings replaces the marketplace settings row.
func (e Engine) UpdateSettings(ctx context.Context, actor domain.Actor, cfg *config.Config) error {
	if err := policy.Require(actor.Role, policy.ActionManageSettings); err != nil {
		return err
	}
	if cfg == nil {
		return domain.ValidationError{Field: "config", Reason: "is required"}
	}
	if err := cfg.Validate(); err != nil {
		return domain.ValidationError{Field: "config", Reason: err.Error()}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.UpsertSettingsTx(ctx, tx, cfg); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "settings.updated", "settings", "1", actor.ID, events.EventPayload{
		"locale": cfg.Marketplace.Locale,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Settings returns the live marketplace settings.
func (e Engine) Settings(ctx context.Context) *config.Config {
	return e.settings(ctx)
}
