// Package app wires a workspace into a ready Engine: database, schema,
// settings row, and the first admin account.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"essaybid/internal/config"
	"essaybid/internal/db"
	"essaybid/internal/domain"
	"essaybid/internal/engine"
	"essaybid/internal/migrate"
	"essaybid/internal/repo"
)

// Open opens and migrates the workspace database.
func Open(workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Path(workspace), err)
	}
	return conn, nil
}

// ResolveConfig returns the marketplace settings for a workspace. The
// database row wins; a config file seeds it on first use; defaults cover
// a bare workspace.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := r.GetSettings(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	cfg, err = config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := r.UpsertSettings(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}
	return cfg, nil
}

// AdminSeed describes the first admin account.
type AdminSeed struct {
	Email    string
	Name     string
	Password string
}

// EnsureAdmin creates the first admin account if no admin exists yet.
// Returns the admin in place, created or not.
func EnsureAdmin(ctx context.Context, e engine.Engine, seed AdminSeed) (domain.User, bool, error) {
	admins, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: domain.RoleAdmin})
	if err != nil {
		return domain.User{}, false, err
	}
	if len(admins) > 0 {
		return admins[0], false, nil
	}
	if seed.Email == "" || seed.Password == "" {
		return domain.User{}, false, errors.New("no admin account exists; provide admin email and password")
	}
	if seed.Name == "" {
		seed.Name = "Administrator"
	}
	u, err := e.CreateUser(ctx, domain.Actor{ID: "bootstrap", Role: domain.RoleAdmin}, engine.UserCreateOptions{
		Email:    seed.Email,
		Name:     seed.Name,
		Role:     domain.RoleAdmin,
		Password: seed.Password,
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return u, true, nil
}

// Bootstrap opens the workspace and returns a ready engine.
func Bootstrap(ctx context.Context, workspace string) (engine.Engine, *sql.DB, error) {
	conn, err := Open(workspace)
	if err != nil {
		return engine.Engine{}, nil, err
	}
	r := repo.Repo{DB: conn}
	cfg, err := ResolveConfig(ctx, workspace, r)
	if err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	return engine.New(conn, cfg), conn, nil
}
