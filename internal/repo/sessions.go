package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"essaybid/internal/domain"
)

// HashToken returns the hex SHA-256 of a session token. Only hashes are
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.Session) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sessions(id,user_id,token_hash,created_at) VALUES (?,?,?,?)`,
		s.ID, s.UserID, s.TokenHash, s.CreatedAt)
	return err
}

// GetSessionUser resolves a raw token to its active user.
func (r Repo) GetSessionUser(ctx context.Context, token string) (domain.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT u.id,u.email,u.name,u.role,u.password_hash,u.active,u.created_at
FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.token_hash=? AND u.active=1`, HashToken(token))
	return scanUser(row.Scan)
}

func (r Repo) DeleteSession(ctx context.Context, token string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash=?`, HashToken(token))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSessionsForUserTx(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=?`, userID)
	return err
}
