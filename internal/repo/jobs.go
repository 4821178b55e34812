package repo

import (
	"context"
	"database/sql"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(id,shop_id,order_id,type,status,start_time,end_time,duration_minutes,priority,progress,due_date,flagged_for_review,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		j.ID, j.ShopID, j.OrderID, j.Type, j.Status, nullableStringPtr(j.StartTime), nullableStringPtr(j.EndTime),
		nullableIntPtr(j.DurationMinutes), j.Priority, j.Progress, nullableStringPtr(j.DueDate), j.FlaggedForReview,
		j.CreatedAt, j.UpdatedAt)
	return err
}

// UpdateJob writes all workflow-owned columns; the engine decides what changed.
func (r Repo) UpdateJob(ctx context.Context, tx *sql.Tx, j domain.Job) error {
	_, err := tx.ExecContext(ctx, `UPDATE jobs SET status=?, start_time=?, end_time=?, duration_minutes=?, priority=?, progress=?, due_date=?, flagged_for_review=?, updated_at=? WHERE id=?`,
		j.Status, nullableStringPtr(j.StartTime), nullableStringPtr(j.EndTime), nullableIntPtr(j.DurationMinutes),
		j.Priority, j.Progress, nullableStringPtr(j.DueDate), j.FlaggedForReview, j.UpdatedAt, j.ID)
	return err
}

const jobColumns = `id,shop_id,order_id,type,status,start_time,end_time,duration_minutes,priority,progress,due_date,flagged_for_review,created_at,updated_at`

func scanJob(scan func(dest ...any) error) (domain.Job, error) {
	var j domain.Job
	var start, end, due sql.NullString
	var duration sql.NullInt64
	err := scan(&j.ID, &j.ShopID, &j.OrderID, &j.Type, &j.Status, &start, &end, &duration,
		&j.Priority, &j.Progress, &due, &j.FlaggedForReview, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return j, err
	}
	if start.Valid {
		j.StartTime = &start.String
	}
	if end.Valid {
		j.EndTime = &end.String
	}
	if duration.Valid {
		d := int(duration.Int64)
		j.DurationMinutes = &d
	}
	if due.Valid {
		j.DueDate = &due.String
	}
	return j, nil
}

func (r Repo) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	j, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	return j, err
}

func (r Repo) GetJobTx(ctx context.Context, tx *sql.Tx, id string) (domain.Job, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=?`, id)
	j, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	return j, err
}

type JobFilters struct {
	ShopID          string
	OrderID         string
	Status          string
	Type            string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListJobs(ctx context.Context, f JobFilters) ([]domain.Job, error) {
	clauses := []string{"shop_id=?"}
	args := []any{f.ShopID}
	if f.OrderID != "" {
		clauses = append(clauses, "order_id=?")
		args = append(args, f.OrderID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, nil
}

// ListOpenDatedJobs returns non-terminal jobs carrying a due date, for the
// deadline sweep.
func (r Repo) ListOpenDatedJobs(ctx context.Context, shopID string) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE shop_id=? AND due_date IS NOT NULL AND status NOT IN ('completed') ORDER BY due_date ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, nil
}

func (r Repo) CountJobsByStatus(ctx context.Context, shopID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM jobs WHERE shop_id=? GROUP BY status`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, nil
}
