package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
	"essaybid/internal/events"
)

// SendMessage posts a chat message on a request. The receiver is derived,
// never client-supplied: the owning student talks to the assigned
// supervisor and vice versa. Under moderation the message stays hidden
// from the receiver until an admin approves it.
func (e Engine) SendMessage(ctx context.Context, actor domain.Actor, requestID, body string) (domain.ChatMessage, error) {
	if err := policy.Require(actor.Role, policy.ActionSendMessage); err != nil {
		return domain.ChatMessage{}, err
	}
	if strings.TrimSpace(body) == "" {
		return domain.ChatMessage{}, domain.ValidationError{Field: "body", Reason: "is required"}
	}
	req, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.ChatMessage{}, notFoundAs(err, "request", requestID)
	}
	var receiverID string
	switch {
	case actor.ID == req.StudentID:
		if req.AssignedSupervisor == nil {
			return domain.ChatMessage{}, domain.ConflictError{Reason: "request " + req.ID + " has no assigned supervisor"}
		}
		receiverID = *req.AssignedSupervisor
	case req.AssignedSupervisor != nil && actor.ID == *req.AssignedSupervisor:
		receiverID = req.StudentID
	default:
		return domain.ChatMessage{}, domain.AuthorizationError{Role: actor.Role, Action: string(policy.ActionSendMessage)}
	}

	cfg := e.settings(ctx)
	now := e.nowRFC3339()
	m := domain.ChatMessage{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		SenderID:   actor.ID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  now,
	}
	if !cfg.Chat.Moderated {
		m.Approved = true
		m.ApprovedAt = &now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertMessage(ctx, tx, m); err != nil {
		return domain.ChatMessage{}, err
	}
	if m.Approved {
		if err := e.notify(ctx, tx, cfg, m.ReceiverID, "message_approved", "message.approved", req.Title); err != nil {
			return domain.ChatMessage{}, err
		}
	} else {
		if err := e.notifyRole(ctx, tx, cfg, domain.RoleAdmin, "message_sent", "message.sent", req.Title); err != nil {
			return domain.ChatMessage{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "message.sent", "message", m.ID, actor.ID, events.EventPayload{
		"request_id": m.RequestID,
		"approved":   m.Approved,
	}); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

// ApproveMessage releases a held message to its receiver.
func (e Engine) ApproveMessage(ctx context.Context, actor domain.Actor, messageID string) (domain.ChatMessage, error) {
	if err := policy.Require(actor.Role, policy.ActionApproveMessage); err != nil {
		return domain.ChatMessage{}, err
	}
	cfg := e.settings(ctx)
	now := e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	defer tx.Rollback()

	// the approved check runs inside the transaction so two admins
	// approving the same message cannot both pass it
	m, err := e.Repo.GetMessageTx(ctx, tx, messageID)
	if err != nil {
		return domain.ChatMessage{}, notFoundAs(err, "message", messageID)
	}
	if m.Approved {
		return domain.ChatMessage{}, domain.InvalidStateError{Entity: "message", ID: messageID, Status: "approved", Target: "approved"}
	}
	req, err := e.Repo.GetRequestTx(ctx, tx, m.RequestID)
	if err != nil {
		return domain.ChatMessage{}, notFoundAs(err, "request", m.RequestID)
	}
	if err := e.Repo.ApproveMessageTx(ctx, tx, m.ID, actor.ID, now); err != nil {
		return domain.ChatMessage{}, notFoundAs(err, "message", messageID)
	}
	m.Approved = true
	m.ApprovedBy = &actor.ID
	m.ApprovedAt = &now
	if err := e.notify(ctx, tx, cfg, m.ReceiverID, "message_approved", "message.approved", req.Title); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := e.Events.Append(ctx, tx, "message.approved", "message", m.ID, actor.ID, events.EventPayload{
		"request_id": m.RequestID,
	}); err != nil {
		return domain.ChatMessage{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ChatMessage{}, err
	}
	return m, nil
}

// DeleteMessage drops a message without releasing it.
func (e Engine) DeleteMessage(ctx context.Context, actor domain.Actor, messageID string) error {
	if err := policy.Require(actor.Role, policy.ActionDeleteMessage); err != nil {
		return err
	}
	m, err := e.Repo.GetMessage(ctx, messageID)
	if err != nil {
		return notFoundAs(err, "message", messageID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteMessage(ctx, tx, messageID); err != nil {
		return notFoundAs(err, "message", messageID)
	}
	if err := e.Events.Append(ctx, tx, "message.deleted", "message", m.ID, actor.ID, events.EventPayload{
		"request_id": m.RequestID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
