package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const notificationColumns = `id,user_id,title,message,kind,read,created_at`

func scanNotification(scan func(dest ...any) error) (domain.Notification, error) {
	var n domain.Notification
	var read int
	err := scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Kind, &read, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	n.Read = read != 0
	return n, err
}

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,user_id,title,message,kind,read,created_at) VALUES (?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Kind, boolInt(n.Read), n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, id string) (domain.Notification, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id)
	return scanNotification(row.Scan)
}

func (r Repo) GetNotificationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Notification, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id)
	return scanNotification(row.Scan)
}

func (r Repo) MarkNotificationReadTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type NotificationFilters struct {
	UserID     string
	UnreadOnly bool
	Kind       string
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.UnreadOnly {
		clauses = append(clauses, "read=0")
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind=?")
		args = append(args, f.Kind)
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&n)
	return n, err
}
