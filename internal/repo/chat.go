package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const messageColumns = `id,request_id,sender_id,receiver_id,body,approved,approved_by,approved_at,created_at`

func scanMessage(scan func(dest ...any) error) (domain.ChatMessage, error) {
	var m domain.ChatMessage
	var approved int
	var approvedBy, approvedAt sql.NullString
	err := scan(&m.ID, &m.RequestID, &m.SenderID, &m.ReceiverID, &m.Body, &approved, &approvedBy, &approvedAt, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	m.Approved = approved != 0
	if approvedBy.Valid {
		m.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		m.ApprovedAt = &approvedAt.String
	}
	return m, err
}

func (r Repo) InsertMessage(ctx context.Context, tx *sql.Tx, m domain.ChatMessage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO chat_messages(id,request_id,sender_id,receiver_id,body,approved,approved_by,approved_at,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		m.ID, m.RequestID, m.SenderID, m.ReceiverID, m.Body, boolInt(m.Approved), nullableStringPtr(m.ApprovedBy), nullableStringPtr(m.ApprovedAt), m.CreatedAt)
	return err
}

func (r Repo) GetMessage(ctx context.Context, id string) (domain.ChatMessage, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id=?`, id)
	return scanMessage(row.Scan)
}

func (r Repo) GetMessageTx(ctx context.Context, tx *sql.Tx, id string) (domain.ChatMessage, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id=?`, id)
	return scanMessage(row.Scan)
}

func (r Repo) ApproveMessageTx(ctx context.Context, tx *sql.Tx, id, approvedBy, approvedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE chat_messages SET approved=1, approved_by=?, approved_at=? WHERE id=?`, approvedBy, approvedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteMessage(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type MessageFilters struct {
	RequestID string
	// VisibleTo restricts to messages a participant may see: approved
	// messages plus their own unapproved ones. Empty means no restriction.
	VisibleTo   string
	PendingOnly bool
}

func (r Repo) ListMessages(ctx context.Context, f MessageFilters) ([]domain.ChatMessage, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.RequestID != "" {
		clauses = append(clauses, "request_id=?")
		args = append(args, f.RequestID)
	}
	if f.VisibleTo != "" {
		clauses = append(clauses, "(approved=1 OR sender_id=?)")
		args = append(args, f.VisibleTo)
	}
	if f.PendingOnly {
		clauses = append(clauses, "approved=0")
	}
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
