package engine

import (
	"context"

	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
	"essaybid/internal/repo"
)

// RequestQuery narrows ListRequests within the caller's visibility.
// Assigned restricts the result to requests with a supervisor on them;
// for supervisors that means their own assignments.
type RequestQuery struct {
	Status       string
	FieldOfStudy string
	Search       string
	Assigned     bool
}

// ListRequests applies role visibility: students see their own requests,
// supervisors see pending ones plus those assigned to them, admins see
// everything.
func (e Engine) ListRequests(ctx context.Context, actor domain.Actor, q RequestQuery) ([]domain.EssayRequest, error) {
	f := repo.RequestFilters{
		Status:       q.Status,
		FieldOfStudy: q.FieldOfStudy,
		Search:       q.Search,
		AssignedOnly: q.Assigned,
	}
	switch actor.Role {
	case domain.RoleStudent:
		f.StudentID = actor.ID
	case domain.RoleSupervisor:
		if q.Assigned {
			f.AssignedSupervisor = actor.ID
		} else {
			f.PendingOrAssignedTo = actor.ID
		}
	case domain.RoleAdmin:
	default:
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "request.list"}
	}
	return e.Repo.ListRequests(ctx, f)
}

func (e Engine) canSeeRequest(actor domain.Actor, req domain.EssayRequest) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStudent:
		return req.StudentID == actor.ID
	case domain.RoleSupervisor:
		if req.Status == domain.StatusPending {
			return true
		}
		return req.AssignedSupervisor != nil && *req.AssignedSupervisor == actor.ID
	}
	return false
}

// GetRequest fetches one request under the same visibility rules as
// ListRequests.
func (e Engine) GetRequest(ctx context.Context, actor domain.Actor, id string) (domain.EssayRequest, error) {
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "request", id)
	}
	if !e.canSeeRequest(actor, req) {
		return domain.EssayRequest{}, domain.AuthorizationError{Role: actor.Role, Action: "request.get"}
	}
	return req, nil
}

// BidQuery narrows ListBids within the caller's visibility.
type BidQuery struct {
	RequestID string
	Status    string
}

// ListBids shows supervisors their own bids and admins all of them.
// Students never see bids.
func (e Engine) ListBids(ctx context.Context, actor domain.Actor, q BidQuery) ([]domain.Bid, error) {
	if err := policy.Require(actor.Role, policy.ActionListBids); err != nil {
		return nil, err
	}
	f := repo.BidFilters{RequestID: q.RequestID, Status: q.Status}
	if actor.Role == domain.RoleSupervisor {
		f.SupervisorID = actor.ID
	}
	return e.Repo.ListBids(ctx, f)
}

// ListPrices shows admin price quotes to admins and to the request's
// owning student.
func (e Engine) ListPrices(ctx context.Context, actor domain.Actor, requestID string) ([]domain.AdminPrice, error) {
	if actor.Role == domain.RoleAdmin {
		return e.Repo.ListPrices(ctx, requestID)
	}
	if actor.Role != domain.RoleStudent || requestID == "" {
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "price.list"}
	}
	req, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, notFoundAs(err, "request", requestID)
	}
	if req.StudentID != actor.ID {
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "price.list"}
	}
	return e.Repo.ListPrices(ctx, requestID)
}

// MessageQuery narrows ListMessages.
type MessageQuery struct {
	RequestID string
	// PendingOnly restricts to held messages; admin only.
	PendingOnly bool
}

// ListMessages applies the moderation gate: admins see every message,
// participants see approved messages plus their own held ones.
func (e Engine) ListMessages(ctx context.Context, actor domain.Actor, q MessageQuery) ([]domain.ChatMessage, error) {
	f := repo.MessageFilters{RequestID: q.RequestID, PendingOnly: q.PendingOnly}
	if actor.Role == domain.RoleAdmin {
		return e.Repo.ListMessages(ctx, f)
	}
	if q.PendingOnly {
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "chat.list_pending"}
	}
	if q.RequestID == "" {
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "chat.list"}
	}
	req, err := e.Repo.GetRequest(ctx, q.RequestID)
	if err != nil {
		return nil, notFoundAs(err, "request", q.RequestID)
	}
	participant := req.StudentID == actor.ID ||
		(req.AssignedSupervisor != nil && *req.AssignedSupervisor == actor.ID)
	if !participant {
		return nil, domain.AuthorizationError{Role: actor.Role, Action: "chat.list"}
	}
	f.VisibleTo = actor.ID
	return e.Repo.ListMessages(ctx, f)
}

// QuestionQuery narrows ListQuestions.
type QuestionQuery struct {
	Status   string
	Category string
	Search   string
	Mine     bool
}

// ListQuestions returns the shared board, visible to every role.
func (e Engine) ListQuestions(ctx context.Context, actor domain.Actor, q QuestionQuery) ([]domain.Question, error) {
	f := repo.QuestionFilters{Status: q.Status, Category: q.Category, Search: q.Search}
	if q.Mine {
		f.AuthorID = actor.ID
	}
	return e.Repo.ListQuestions(ctx, f)
}

// ListNotifications returns the actor's own notifications.
func (e Engine) ListNotifications(ctx context.Context, actor domain.Actor, unreadOnly bool) ([]domain.Notification, error) {
	return e.Repo.ListNotifications(ctx, repo.NotificationFilters{UserID: actor.ID, UnreadOnly: unreadOnly})
}

// UnreadCount returns how many of the actor's notifications are unread.
func (e Engine) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	return e.Repo.CountUnreadNotifications(ctx, actor.ID)
}

// Categories is the derived catalog surface clients render pickers from.
type Categories struct {
	AssignmentTypes    []string `json:"assignment_types"`
	FieldsOfStudy      []string `json:"fields_of_study"`
	QuestionCategories []string `json:"question_categories"`
}

// ListCategories merges the configured catalog with fields of study
// already in use, so legacy values keep appearing after a catalog edit.
func (e Engine) ListCategories(ctx context.Context, actor domain.Actor) (Categories, error) {
	cfg := e.settings(ctx)
	c := Categories{
		AssignmentTypes:    append([]string(nil), domain.AssignmentTypes...),
		FieldsOfStudy:      append([]string(nil), cfg.Catalog.FieldsOfStudy...),
		QuestionCategories: append([]string(nil), cfg.Catalog.QuestionCategories...),
	}
	inUse, err := e.Repo.FieldsOfStudyInUse(ctx)
	if err != nil {
		return Categories{}, err
	}
	seen := map[string]bool{}
	for _, f := range c.FieldsOfStudy {
		seen[f] = true
	}
	for _, f := range inUse {
		if !seen[f] {
			c.FieldsOfStudy = append(c.FieldsOfStudy, f)
			seen[f] = true
		}
	}
	return c, nil
}

// ListUsers is admin only.
func (e Engine) ListUsers(ctx context.Context, actor domain.Actor, f repo.UserFilters) ([]domain.User, error) {
	if err := policy.Require(actor.Role, policy.ActionManageUsers); err != nil {
		return nil, err
	}
	return e.Repo.ListUsers(ctx, f)
}

// GetUser is admin only, except for an actor fetching their own account.
func (e Engine) GetUser(ctx context.Context, actor domain.Actor, id string) (domain.User, error) {
	if actor.ID != id {
		if err := policy.Require(actor.Role, policy.ActionManageUsers); err != nil {
			return domain.User{}, err
		}
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, notFoundAs(err, "user", id)
	}
	return u, nil
}

// ListEvents exposes the audit trail to admins.
func (e Engine) ListEvents(ctx context.Context, actor domain.Actor, f repo.EventFilters) ([]domain.Event, error) {
	if err := policy.Require(actor.Role, policy.ActionReadEvents); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, f)
}
