package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const bidColumns = `id,request_id,supervisor_id,price,notes,status,created_at`

func scanBid(scan func(dest ...any) error) (domain.Bid, error) {
	var b domain.Bid
	var notes sql.NullString
	err := scan(&b.ID, &b.RequestID, &b.SupervisorID, &b.Price, &notes, &b.Status, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if notes.Valid {
		b.Notes = notes.String
	}
	return b, err
}

func (r Repo) InsertBid(ctx context.Context, tx *sql.Tx, b domain.Bid) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO bids(id,request_id,supervisor_id,price,notes,status,created_at) VALUES (?,?,?,?,?,?,?)`,
		b.ID, b.RequestID, b.SupervisorID, b.Price, nullable(b.Notes), b.Status, b.CreatedAt)
	return err
}

func (r Repo) GetBid(ctx context.Context, id string) (domain.Bid, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id=?`, id)
	return scanBid(row.Scan)
}

func (r Repo) GetBidTx(ctx context.Context, tx *sql.Tx, id string) (domain.Bid, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id=?`, id)
	return scanBid(row.Scan)
}

func (r Repo) UpdateBidStatusTx(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE bids SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type BidFilters struct {
	RequestID    string
	SupervisorID string
	Status       string
}

func (r Repo) ListBids(ctx context.Context, f BidFilters) ([]domain.Bid, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.RequestID != "" {
		clauses = append(clauses, "request_id=?")
		args = append(args, f.RequestID)
	}
	if f.SupervisorID != "" {
		clauses = append(clauses, "supervisor_id=?")
		args = append(args, f.SupervisorID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + bidColumns + ` FROM bids WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// CountAcceptedBidsTx counts accepted bids on a request inside a command
// transaction.
func (r Repo) CountAcceptedBidsTx(ctx context.Context, tx *sql.Tx, requestID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM bids WHERE request_id=? AND status='accepted'`, requestID).Scan(&n)
	return n, err
}
