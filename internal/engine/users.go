package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
	"essaybid/internal/events"
	"essaybid/internal/repo"
)

// ErrInvalidCredentials hides whether the email or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// UserCreateOptions are parameters for registering or creating a user.
type UserCreateOptions struct {
	Email    string
	Name     string
	Role     domain.Role
	Password string
}

func validateUserFields(opts UserCreateOptions) error {
	email := strings.TrimSpace(opts.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if strings.TrimSpace(opts.Name) == "" {
		return domain.ValidationError{Field: "name", Reason: "is required"}
	}
	if !opts.Role.Valid() {
		return domain.ValidationError{Field: "role", Reason: "unknown role " + string(opts.Role)}
	}
	if len(opts.Password) < 8 {
		return domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	return nil
}

func (e Engine) createUser(ctx context.Context, opts UserCreateOptions, evtType, actorID string) (domain.User, error) {
	if err := validateUserFields(opts); err != nil {
		return domain.User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, domain.ConflictError{Reason: "email " + email + " already registered"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         opts.Name,
		Role:         opts.Role,
		PasswordHash: hashPassword(opts.Password),
		Active:       true,
		CreatedAt:    e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "user", u.ID, actorID, events.EventPayload{
		"email": u.Email,
		"role":  string(u.Role),
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Register self-registers a student or supervisor account. Admin accounts
// come only from an existing admin or the bootstrap seed.
func (e Engine) Register(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Role == domain.RoleAdmin {
		return domain.User{}, domain.AuthorizationError{Role: opts.Role, Action: "register"}
	}
	return e.createUser(ctx, opts, "user.registered", "")
}

// CreateUser lets an admin create an account of any role.
func (e Engine) CreateUser(ctx context.Context, actor domain.Actor, opts UserCreateOptions) (domain.User, error) {
	if err := policy.Require(actor.Role, policy.ActionManageUsers); err != nil {
		return domain.User{}, err
	}
	return e.createUser(ctx, opts, "user.created", actor.ID)
}

// Login checks credentials and mints an opaque session token. Only the
// token hash is stored.
func (e Engine) Login(ctx context.Context, email, password string) (domain.User, string, error) {
	u, err := e.Repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, "", ErrInvalidCredentials
		}
		return domain.User{}, "", err
	}
	if !u.Active || u.PasswordHash != hashPassword(password) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	s := domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: repo.HashToken(token),
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, "", err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return domain.User{}, "", err
	}
	if err := e.Events.Append(ctx, tx, "user.login", "user", u.ID, u.ID, nil); err != nil {
		return domain.User{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, "", err
	}
	return u, token, nil
}

// Logout revokes one session token. Unknown tokens are not an error.
func (e Engine) Logout(ctx context.Context, token string) error {
	err := e.Repo.DeleteSession(ctx, token)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	return err
}

// UserUpdateOptions carries the mutable account fields. Nil means keep.
type UserUpdateOptions struct {
	Name     *string
	Role     *domain.Role
	Active   *bool
	Password *string
}

// UpdateUser lets an admin edit an account. Deactivating drops all of the
// account's sessions.
func (e Engine) UpdateUser(ctx context.Context, actor domain.Actor, id string, opts UserUpdateOptions) (domain.User, error) {
	if err := policy.Require(actor.Role, policy.ActionManageUsers); err != nil {
		return domain.User{}, err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, notFoundAs(err, "user", id)
	}
	if opts.Name != nil {
		if strings.TrimSpace(*opts.Name) == "" {
			return domain.User{}, domain.ValidationError{Field: "name", Reason: "is required"}
		}
		u.Name = *opts.Name
	}
	if opts.Role != nil {
		if !opts.Role.Valid() {
			return domain.User{}, domain.ValidationError{Field: "role", Reason: "unknown role " + string(*opts.Role)}
		}
		u.Role = *opts.Role
	}
	if opts.Active != nil {
		u.Active = *opts.Active
	}
	if opts.Password != nil {
		if len(*opts.Password) < 8 {
			return domain.User{}, domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
		}
		u.PasswordHash = hashPassword(*opts.Password)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateUser(ctx, tx, u); err != nil {
		return domain.User{}, notFoundAs(err, "user", id)
	}
	if opts.Active != nil && !*opts.Active {
		if err := e.Repo.DeleteSessionsForUserTx(ctx, tx, u.ID); err != nil {
			return domain.User{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "user.updated", "user", u.ID, actor.ID, events.EventPayload{
		"role":   string(u.Role),
		"active": u.Active,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// DeleteUser removes an account and its sessions.
func (e Engine) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	if err := policy.Require(actor.Role, policy.ActionManageUsers); err != nil {
		return err
	}
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return notFoundAs(err, "user", id)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteUser(ctx, tx, id); err != nil {
		return notFoundAs(err, "user", id)
	}
	if err := e.Events.Append(ctx, tx, "user.deleted", "user", u.ID, actor.ID, events.EventPayload{
		"email": u.Email,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
