package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const questionColumns = `id,author_id,title,body,category,status,answer,answered_by,answered_at,created_at`

func scanQuestion(scan func(dest ...any) error) (domain.Question, error) {
	var q domain.Question
	var answer, answeredBy, answeredAt sql.NullString
	err := scan(&q.ID, &q.AuthorID, &q.Title, &q.Body, &q.Category, &q.Status, &answer, &answeredBy, &answeredAt, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if answer.Valid {
		q.Answer = &answer.String
	}
	if answeredBy.Valid {
		q.AnsweredBy = &answeredBy.String
	}
	if answeredAt.Valid {
		q.AnsweredAt = &answeredAt.String
	}
	return q, err
}

func (r Repo) InsertQuestion(ctx context.Context, tx *sql.Tx, q domain.Question) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO questions(id,author_id,title,body,category,status,answer,answered_by,answered_at,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.AuthorID, q.Title, q.Body, q.Category, q.Status, nullableStringPtr(q.Answer), nullableStringPtr(q.AnsweredBy), nullableStringPtr(q.AnsweredAt), q.CreatedAt)
	return err
}

func (r Repo) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=?`, id)
	return scanQuestion(row.Scan)
}

func (r Repo) GetQuestionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Question, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=?`, id)
	return scanQuestion(row.Scan)
}

func (r Repo) AnswerQuestionTx(ctx context.Context, tx *sql.Tx, id, answer, answeredBy, answeredAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE questions SET status=?, answer=?, answered_by=?, answered_at=? WHERE id=?`,
		domain.StatusAnswered, answer, answeredBy, answeredAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type QuestionFilters struct {
	Status   string
	Category string
	AuthorID string
	Search   string
}

func (r Repo) ListQuestions(ctx context.Context, f QuestionFilters) ([]domain.Question, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.AuthorID != "" {
		clauses = append(clauses, "author_id=?")
		args = append(args, f.AuthorID)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR body LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	query := `SELECT ` + questionColumns + ` FROM questions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}
