package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const userColumns = `id,email,name,role,password_hash,active,created_at`

func scanUser(scan func(dest ...any) error) (domain.User, error) {
	var u domain.User
	var active int
	err := scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	u.Active = active != 0
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(id,email,name,role,password_hash,active,created_at) VALUES (?,?,?,?,?,?,?)`,
		u.ID, u.Email, u.Name, u.Role, u.PasswordHash, boolInt(u.Active), u.CreatedAt)
	return err
}

func (r Repo) UpdateUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET email=?, name=?, role=?, password_hash=?, active=? WHERE id=?`,
		u.Email, u.Name, u.Role, u.PasswordHash, boolInt(u.Active), u.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteUser(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row.Scan)
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.TrimSpace(email))
	return scanUser(row.Scan)
}

type UserFilters struct {
	Role   domain.Role
	Active *bool
}

func (r Repo) ListUsers(ctx context.Context, f UserFilters) ([]domain.User, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, f.Role)
	}
	if f.Active != nil {
		clauses = append(clauses, "active=?")
		args = append(args, boolInt(*f.Active))
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UserIDsByRoleTx lists user ids for a role inside a command transaction,
// used for notification fan-out.
func (r Repo) UserIDsByRoleTx(ctx context.Context, tx *sql.Tx, role domain.Role) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM users WHERE role=? AND active=1 ORDER BY created_at ASC, id ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
