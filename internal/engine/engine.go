// Package engine implements the marketplace commands. Every command runs
// in a single transaction: state change, derived notifications, and the
// audit event commit together or not at all.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"essaybid/internal/config"
	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
	"essaybid/internal/events"
	"essaybid/internal/i18n"
	"essaybid/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	I18n   *i18n.Catalog
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		I18n:   i18n.Default(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// settings returns the live marketplace settings. The database row wins;
// the injected config is the fallback before the first import.
func (e Engine) settings(ctx context.Context) *config.Config {
	cfg, err := e.Repo.GetSettings(ctx)
	if err == nil {
		return cfg
	}
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// notify inserts one notification inside the command transaction, rendered
// in the marketplace locale. A disabled notifications setting makes it a
// no-op.
func (e Engine) notify(ctx context.Context, tx *sql.Tx, cfg *config.Config, userID, kind, key string, args ...any) error {
	if !cfg.Notifications.Enabled {
		return nil
	}
	locale := cfg.Marketplace.Locale
	n := domain.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     e.I18n.T(locale, key+".title"),
		Message:   e.I18n.T(locale, key+".message", args...),
		Kind:      kind,
		CreatedAt: e.nowRFC3339(),
	}
	return e.Repo.InsertNotification(ctx, tx, n)
}

// notifyRole fans one notification out to every active user with the role.
func (e Engine) notifyRole(ctx context.Context, tx *sql.Tx, cfg *config.Config, role domain.Role, kind, key string, args ...any) error {
	if !cfg.Notifications.Enabled {
		return nil
	}
	ids, err := e.Repo.UserIDsByRoleTx(ctx, tx, role)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := e.notify(ctx, tx, cfg, id, kind, key, args...); err != nil {
			return err
		}
	}
	return nil
}

func notFoundAs(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func parseTimestamp(field, value string) error {
	if value == "" {
		return domain.ValidationError{Field: field, Reason: "is required"}
	}
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return domain.ValidationError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	return nil
}

// RequestCreateOptions are parameters for opening a request for bidding.
type RequestCreateOptions struct {
	Title            string
	DueDate          string
	WordCount        int
	AssignmentType   string
	FieldOfStudy     string
	ExtraInformation string
}

func (e Engine) validateRequestFields(cfg *config.Config, opts RequestCreateOptions) error {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if err := parseTimestamp("due_date", opts.DueDate); err != nil {
		return err
	}
	if opts.WordCount <= 0 {
		return domain.ValidationError{Field: "word_count", Reason: "must be positive"}
	}
	if !domain.KnownAssignmentType(opts.AssignmentType) {
		return domain.ValidationError{Field: "assignment_type", Reason: "unknown type " + opts.AssignmentType}
	}
	if opts.FieldOfStudy == "" {
		return domain.ValidationError{Field: "field_of_study", Reason: "is required"}
	}
	if len(cfg.Catalog.FieldsOfStudy) > 0 {
		known := false
		for _, f := range cfg.Catalog.FieldsOfStudy {
			if f == opts.FieldOfStudy {
				known = true
				break
			}
		}
		if !known {
			return domain.ValidationError{Field: "field_of_study", Reason: "not in catalog: " + opts.FieldOfStudy}
		}
	}
	return nil
}

// CreateRequest opens a new pending request owned by the student actor and
// tells every supervisor about it.
func (e Engine) CreateRequest(ctx context.Context, actor domain.Actor, opts RequestCreateOptions) (domain.EssayRequest, error) {
	if err := policy.Require(actor.Role, policy.ActionCreateRequest); err != nil {
		return domain.EssayRequest{}, err
	}
	cfg := e.settings(ctx)
	if err := e.validateRequestFields(cfg, opts); err != nil {
		return domain.EssayRequest{}, err
	}
	req := domain.EssayRequest{
		ID:               uuid.NewString(),
		StudentID:        actor.ID,
		Title:            opts.Title,
		DueDate:          opts.DueDate,
		WordCount:        opts.WordCount,
		AssignmentType:   opts.AssignmentType,
		FieldOfStudy:     opts.FieldOfStudy,
		ExtraInformation: opts.ExtraInformation,
		Status:           domain.StatusPending,
		CreatedAt:        e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EssayRequest{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertRequest(ctx, tx, req); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := e.notifyRole(ctx, tx, cfg, domain.RoleSupervisor, "request_created", "request.created", req.Title); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := e.Events.Append(ctx, tx, "request.created", "request", req.ID, actor.ID, events.EventPayload{
		"title":  req.Title,
		"status": req.Status,
	}); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EssayRequest{}, err
	}
	return req, nil
}

// RequestUpdateOptions carries the mutable request fields. Nil means keep.
type RequestUpdateOptions struct {
	Title            *string
	DueDate          *string
	WordCount        *int
	AssignmentType   *string
	FieldOfStudy     *string
	ExtraInformation *string
}

// UpdateRequest edits a request. Students may edit their own pending
// requests; admins may edit any request in any state.
func (e Engine) UpdateRequest(ctx context.Context, actor domain.Actor, id string, opts RequestUpdateOptions) (domain.EssayRequest, error) {
	if err := policy.Require(actor.Role, policy.ActionUpdateRequest); err != nil {
		return domain.EssayRequest{}, err
	}
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "request", id)
	}
	if actor.Role == domain.RoleStudent {
		if req.StudentID != actor.ID {
			return domain.EssayRequest{}, domain.AuthorizationError{Role: actor.Role, Action: string(policy.ActionUpdateRequest)}
		}
		if req.Status != domain.StatusPending {
			return domain.EssayRequest{}, domain.InvalidStateError{Entity: "request", ID: id, Status: req.Status, Target: "updated"}
		}
	}
	if opts.Title != nil {
		req.Title = *opts.Title
	}
	if opts.DueDate != nil {
		req.DueDate = *opts.DueDate
	}
	if opts.WordCount != nil {
		req.WordCount = *opts.WordCount
	}
	if opts.AssignmentType != nil {
		req.AssignmentType = *opts.AssignmentType
	}
	if opts.FieldOfStudy != nil {
		req.FieldOfStudy = *opts.FieldOfStudy
	}
	if opts.ExtraInformation != nil {
		req.ExtraInformation = *opts.ExtraInformation
	}
	cfg := e.settings(ctx)
	if err := e.validateRequestFields(cfg, RequestCreateOptions{
		Title:          req.Title,
		DueDate:        req.DueDate,
		WordCount:      req.WordCount,
		AssignmentType: req.AssignmentType,
		FieldOfStudy:   req.FieldOfStudy,
	}); err != nil {
		return domain.EssayRequest{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EssayRequest{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequest(ctx, tx, req); err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "request", id)
	}
	if err := e.Events.Append(ctx, tx, "request.updated", "request", req.ID, actor.ID, events.EventPayload{
		"title": req.Title,
	}); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EssayRequest{}, err
	}
	return req, nil
}

// DeleteRequest removes a request. Students may delete their own pending
// requests; admins may delete any. Bids, prices and chat go with it.
func (e Engine) DeleteRequest(ctx context.Context, actor domain.Actor, id string) error {
	if err := policy.Require(actor.Role, policy.ActionDeleteRequest); err != nil {
		return err
	}
	req, err := e.Repo.GetRequest(ctx, id)
	if err != nil {
		return notFoundAs(err, "request", id)
	}
	if actor.Role == domain.RoleStudent {
		if req.StudentID != actor.ID {
			return domain.AuthorizationError{Role: actor.Role, Action: string(policy.ActionDeleteRequest)}
		}
		if req.Status != domain.StatusPending {
			return domain.InvalidStateError{Entity: "request", ID: id, Status: req.Status, Target: "deleted"}
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteRequest(ctx, tx, id); err != nil {
		return notFoundAs(err, "request", id)
	}
	if err := e.Events.Append(ctx, tx, "request.deleted", "request", id, actor.ID, events.EventPayload{
		"title": req.Title,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// AssignSupervisor sets the assigned supervisor on a request without
// touching its status. Reassigning an accepted request is allowed; the new
// supervisor is notified either way.
func (e Engine) AssignSupervisor(ctx context.Context, actor domain.Actor, requestID, supervisorID string) (domain.EssayRequest, error) {
	if err := policy.Require(actor.Role, policy.ActionAssignSupervisor); err != nil {
		return domain.EssayRequest{}, err
	}
	req, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "request", requestID)
	}
	sup, err := e.Repo.GetUser(ctx, supervisorID)
	if err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "user", supervisorID)
	}
	if sup.Role != domain.RoleSupervisor {
		return domain.EssayRequest{}, domain.NotFoundError{Entity: "supervisor", ID: supervisorID}
	}
	req.AssignedSupervisor = &sup.ID

	cfg := e.settings(ctx)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.EssayRequest{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateRequest(ctx, tx, req); err != nil {
		return domain.EssayRequest{}, notFoundAs(err, "request", requestID)
	}
	if err := e.notify(ctx, tx, cfg, sup.ID, "request_assigned", "request.assigned", req.Title); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := e.Events.Append(ctx, tx, "request.assigned", "request", req.ID, actor.ID, events.EventPayload{
		"supervisor_id": sup.ID,
	}); err != nil {
		return domain.EssayRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.EssayRequest{}, err
	}
	return req, nil
}

// BidCreateOptions are parameters for a supervisor bid.
type BidCreateOptions struct {
	RequestID string
	Price     float64
	Notes     string
}

// CreateBid places a bid on a pending request and tells every admin.
// One open bid per supervisor per request; a rejected bid may be
// followed by a new one while the request stays pending.
func (e Engine) CreateBid(ctx context.Context, actor domain.Actor, opts BidCreateOptions) (domain.Bid, error) {
	if err := policy.Require(actor.Role, policy.ActionCreateBid); err != nil {
		return domain.Bid{}, err
	}
	if opts.Price <= 0 {
		return domain.Bid{}, domain.ValidationError{Field: "price", Reason: "must be positive"}
	}
	req, err := e.Repo.GetRequest(ctx, opts.RequestID)
	if err != nil {
		return domain.Bid{}, notFoundAs(err, "request", opts.RequestID)
	}
	if req.Status != domain.StatusPending {
		return domain.Bid{}, domain.ConflictError{Reason: "request " + req.ID + " is not open for bidding"}
	}
	existing, err := e.Repo.ListBids(ctx, repo.BidFilters{RequestID: req.ID, SupervisorID: actor.ID})
	if err != nil {
		return domain.Bid{}, err
	}
	// a rejected bid does not block a fresh offer
	for _, prior := range existing {
		if prior.Status != domain.StatusRejected {
			return domain.Bid{}, domain.ConflictError{Reason: "supervisor already bid on request " + req.ID}
		}
	}
	b := domain.Bid{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		SupervisorID: actor.ID,
		Price:        opts.Price,
		Notes:        opts.Notes,
		Status:       domain.StatusPending,
		CreatedAt:    e.nowRFC3339(),
	}
	cfg := e.settings(ctx)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bid{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertBid(ctx, tx, b); err != nil {
		return domain.Bid{}, err
	}
	if err := e.notifyRole(ctx, tx, cfg, domain.RoleAdmin, "bid_created", "bid.created", b.Price, req.Title); err != nil {
		return domain.Bid{}, err
	}
	if err := e.Events.Append(ctx, tx, "bid.created", "bid", b.ID, actor.ID, events.EventPayload{
		"request_id": b.RequestID,
		"price":      b.Price,
	}); err != nil {
		return domain.Bid{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bid{}, err
	}
	return b, nil
}

// SetBidStatus accepts or rejects a pending bid. Accepting also moves the
// request to accepted and assigns the bidding supervisor, atomically.
func (e Engine) SetBidStatus(ctx context.Context, actor domain.Actor, bidID, status string) (domain.Bid, error) {
	if err := policy.Require(actor.Role, policy.ActionSetBidStatus); err != nil {
		return domain.Bid{}, err
	}
	if status != domain.StatusAccepted && status != domain.StatusRejected {
		return domain.Bid{}, domain.ValidationError{Field: "status", Reason: "must be accepted or rejected"}
	}
	cfg := e.settings(ctx)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Bid{}, err
	}
	defer tx.Rollback()

	// state checks run inside the transaction so a concurrent decision on
	// the same bid or request cannot slip between read and write
	b, err := e.Repo.GetBidTx(ctx, tx, bidID)
	if err != nil {
		return domain.Bid{}, notFoundAs(err, "bid", bidID)
	}
	if b.Status != domain.StatusPending {
		return domain.Bid{}, domain.InvalidStateError{Entity: "bid", ID: bidID, Status: b.Status, Target: status}
	}
	req, err := e.Repo.GetRequestTx(ctx, tx, b.RequestID)
	if err != nil {
		return domain.Bid{}, notFoundAs(err, "request", b.RequestID)
	}
	if status == domain.StatusAccepted {
		if req.Status != domain.StatusPending {
			return domain.Bid{}, domain.ConflictError{Reason: "request " + req.ID + " is " + req.Status + ", cannot accept a bid on it"}
		}
		n, err := e.Repo.CountAcceptedBidsTx(ctx, tx, req.ID)
		if err != nil {
			return domain.Bid{}, err
		}
		if n > 0 {
			return domain.Bid{}, domain.ConflictError{Reason: "request " + req.ID + " already has an accepted bid"}
		}
	}
	if err := e.Repo.UpdateBidStatusTx(ctx, tx, b.ID, status); err != nil {
		return domain.Bid{}, notFoundAs(err, "bid", bidID)
	}
	b.Status = status

	switch status {
	case domain.StatusAccepted:
		req.Status = domain.StatusAccepted
		req.AssignedSupervisor = &b.SupervisorID
		if err := e.Repo.UpdateRequest(ctx, tx, req); err != nil {
			return domain.Bid{}, err
		}
		if err := e.notify(ctx, tx, cfg, b.SupervisorID, "bid_accepted", "bid.accepted", b.Price, req.Title); err != nil {
			return domain.Bid{}, err
		}
		if err := e.notify(ctx, tx, cfg, req.StudentID, "bid_accepted", "bid.accepted.student", req.Title); err != nil {
			return domain.Bid{}, err
		}
		if err := e.Events.Append(ctx, tx, "request.accepted", "request", req.ID, actor.ID, events.EventPayload{
			"bid_id":        b.ID,
			"supervisor_id": b.SupervisorID,
		}); err != nil {
			return domain.Bid{}, err
		}
	case domain.StatusRejected:
		if err := e.notify(ctx, tx, cfg, b.SupervisorID, "bid_rejected", "bid.rejected", b.Price, req.Title); err != nil {
			return domain.Bid{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "bid."+status, "bid", b.ID, actor.ID, events.EventPayload{
		"request_id": b.RequestID,
	}); err != nil {
		return domain.Bid{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bid{}, err
	}
	return b, nil
}

// SetAdminPrice records an admin price quote on a request and tells the
// owning student.
func (e Engine) SetAdminPrice(ctx context.Context, actor domain.Actor, requestID string, price float64) (domain.AdminPrice, error) {
	if err := policy.Require(actor.Role, policy.ActionSetAdminPrice); err != nil {
		return domain.AdminPrice{}, err
	}
	if price <= 0 {
		return domain.AdminPrice{}, domain.ValidationError{Field: "price", Reason: "must be positive"}
	}
	req, err := e.Repo.GetRequest(ctx, requestID)
	if err != nil {
		return domain.AdminPrice{}, notFoundAs(err, "request", requestID)
	}
	p := domain.AdminPrice{
		ID:        uuid.NewString(),
		RequestID: req.ID,
		Price:     price,
		SetBy:     actor.ID,
		CreatedAt: e.nowRFC3339(),
	}
	cfg := e.settings(ctx)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AdminPrice{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertPrice(ctx, tx, p); err != nil {
		return domain.AdminPrice{}, err
	}
	if err := e.notify(ctx, tx, cfg, req.StudentID, "price_set", "price.set", p.Price, req.Title); err != nil {
		return domain.AdminPrice{}, err
	}
	if err := e.Events.Append(ctx, tx, "price.set", "price", p.ID, actor.ID, events.EventPayload{
		"request_id": p.RequestID,
		"price":      p.Price,
	}); err != nil {
		return domain.AdminPrice{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AdminPrice{}, err
	}
	return p, nil
}

// DeleteAdminPrice removes a price quote.
func (e Engine) DeleteAdminPrice(ctx context.Context, actor domain.Actor, priceID string) error {
	if err := policy.Require(actor.Role, policy.ActionDeleteAdminPrice); err != nil {
		return err
	}
	p, err := e.Repo.GetPrice(ctx, priceID)
	if err != nil {
		return notFoundAs(err, "price", priceID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeletePrice(ctx, tx, priceID); err != nil {
		return notFoundAs(err, "price", priceID)
	}
	if err := e.Events.Append(ctx, tx, "price.deleted", "price", p.ID, actor.ID, events.EventPayload{
		"request_id": p.RequestID,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
