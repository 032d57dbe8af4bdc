package repo

import (
	"context"
	"database/sql"
	"strings"

	"essaybid/internal/domain"
)

const requestColumns = `id,student_id,title,due_date,word_count,assignment_type,field_of_study,extra_information,status,assigned_supervisor,created_at`

func scanRequest(scan func(dest ...any) error) (domain.EssayRequest, error) {
	var req domain.EssayRequest
	var extra, supervisor sql.NullString
	err := scan(&req.ID, &req.StudentID, &req.Title, &req.DueDate, &req.WordCount,
		&req.AssignmentType, &req.FieldOfStudy, &extra, &req.Status, &supervisor, &req.CreatedAt)
	if err == sql.ErrNoRows {
		return req, ErrNotFound
	}
	if err != nil {
		return req, err
	}
	if extra.Valid {
		req.ExtraInformation = extra.String
	}
	if supervisor.Valid {
		req.AssignedSupervisor = &supervisor.String
	}
	return req, nil
}

func (r Repo) InsertRequest(ctx context.Context, tx *sql.Tx, req domain.EssayRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO essay_requests(id,student_id,title,due_date,word_count,assignment_type,field_of_study,extra_information,status,assigned_supervisor,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		req.ID, req.StudentID, req.Title, req.DueDate, req.WordCount, req.AssignmentType,
		req.FieldOfStudy, nullable(req.ExtraInformation), req.Status, nullableStringPtr(req.AssignedSupervisor), req.CreatedAt)
	return err
}

func (r Repo) UpdateRequest(ctx context.Context, tx *sql.Tx, req domain.EssayRequest) error {
	res, err := tx.ExecContext(ctx, `UPDATE essay_requests SET title=?, due_date=?, word_count=?, assignment_type=?, field_of_study=?, extra_information=?, status=?, assigned_supervisor=? WHERE id=?`,
		req.Title, req.DueDate, req.WordCount, req.AssignmentType, req.FieldOfStudy,
		nullable(req.ExtraInformation), req.Status, nullableStringPtr(req.AssignedSupervisor), req.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteRequest(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM essay_requests WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.EssayRequest, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM essay_requests WHERE id=?`, id)
	return scanRequest(row.Scan)
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.EssayRequest, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM essay_requests WHERE id=?`, id)
	return scanRequest(row.Scan)
}

// RequestFilters narrow ListRequests. PendingOrAssignedTo implements the
// supervisor view: every pending request plus requests assigned to that
// supervisor.
type RequestFilters struct {
	StudentID           string
	Status              string
	AssignedSupervisor  string
	PendingOrAssignedTo string
	AssignedOnly        bool
	FieldOfStudy        string
	Search              string
}

func (r Repo) ListRequests(ctx context.Context, f RequestFilters) ([]domain.EssayRequest, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.StudentID != "" {
		clauses = append(clauses, "student_id=?")
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedSupervisor != "" {
		clauses = append(clauses, "assigned_supervisor=?")
		args = append(args, f.AssignedSupervisor)
	}
	if f.PendingOrAssignedTo != "" {
		clauses = append(clauses, "(status='pending' OR assigned_supervisor=?)")
		args = append(args, f.PendingOrAssignedTo)
	}
	if f.AssignedOnly {
		clauses = append(clauses, "assigned_supervisor IS NOT NULL")
	}
	if f.FieldOfStudy != "" {
		clauses = append(clauses, "field_of_study=?")
		args = append(args, f.FieldOfStudy)
	}
	if f.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR extra_information LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	query := `SELECT ` + requestColumns + ` FROM essay_requests WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.EssayRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

// FieldsOfStudyInUse returns distinct field_of_study values ordered by
// first use.
func (r Repo) FieldsOfStudyInUse(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT field_of_study FROM essay_requests GROUP BY field_of_study ORDER BY MIN(created_at), MIN(id)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}
