package repo

import (
	"context"
	"database/sql"

	"essaybid/internal/domain"
)

func (r Repo) InsertPrice(ctx context.Context, tx *sql.Tx, p domain.AdminPrice) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO admin_prices(id,request_id,price,set_by,created_at) VALUES (?,?,?,?,?)`,
		p.ID, p.RequestID, p.Price, p.SetBy, p.CreatedAt)
	return err
}

func (r Repo) GetPrice(ctx context.Context, id string) (domain.AdminPrice, error) {
	var p domain.AdminPrice
	err := r.DB.QueryRowContext(ctx, `SELECT id,request_id,price,set_by,created_at FROM admin_prices WHERE id=?`, id).
		Scan(&p.ID, &p.RequestID, &p.Price, &p.SetBy, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) DeletePrice(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM admin_prices WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListPrices(ctx context.Context, requestID string) ([]domain.AdminPrice, error) {
	query := `SELECT id,request_id,price,set_by,created_at FROM admin_prices`
	var args []any
	if requestID != "" {
		query += ` WHERE request_id=?`
		args = append(args, requestID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AdminPrice
	for rows.Next() {
		var p domain.AdminPrice
		if err := rows.Scan(&p.ID, &p.RequestID, &p.Price, &p.SetBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
