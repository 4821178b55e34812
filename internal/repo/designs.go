package repo

import (
	"context"
	"database/sql"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertDesign(ctx context.Context, tx *sql.Tx, d domain.DesignProject) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO design_projects(id,shop_id,order_id,title,status,priority,progress,due_date,submitted_at,finalized_at,completed_at,feedback,held_from,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ShopID, d.OrderID, d.Title, d.Status, d.Priority, d.Progress, nullableStringPtr(d.DueDate),
		nullableStringPtr(d.SubmittedAt), nullableStringPtr(d.FinalizedAt), nullableStringPtr(d.CompletedAt),
		nullableStringPtr(d.Feedback), nullableStringPtr(d.HeldFrom), d.CreatedAt, d.UpdatedAt)
	return err
}

func (r Repo) UpdateDesign(ctx context.Context, tx *sql.Tx, d domain.DesignProject) error {
	_, err := tx.ExecContext(ctx, `UPDATE design_projects SET status=?, priority=?, progress=?, due_date=?, submitted_at=?, finalized_at=?, completed_at=?, feedback=?, held_from=?, updated_at=? WHERE id=?`,
		d.Status, d.Priority, d.Progress, nullableStringPtr(d.DueDate), nullableStringPtr(d.SubmittedAt),
		nullableStringPtr(d.FinalizedAt), nullableStringPtr(d.CompletedAt), nullableStringPtr(d.Feedback),
		nullableStringPtr(d.HeldFrom), d.UpdatedAt, d.ID)
	return err
}

const designColumns = `id,shop_id,order_id,title,status,priority,progress,due_date,submitted_at,finalized_at,completed_at,feedback,held_from,created_at,updated_at`

func scanDesign(scan func(dest ...any) error) (domain.DesignProject, error) {
	var d domain.DesignProject
	var due, submitted, finalized, completed, feedback, heldFrom sql.NullString
	err := scan(&d.ID, &d.ShopID, &d.OrderID, &d.Title, &d.Status, &d.Priority, &d.Progress,
		&due, &submitted, &finalized, &completed, &feedback, &heldFrom, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if due.Valid {
		d.DueDate = &due.String
	}
	if submitted.Valid {
		d.SubmittedAt = &submitted.String
	}
	if finalized.Valid {
		d.FinalizedAt = &finalized.String
	}
	if completed.Valid {
		d.CompletedAt = &completed.String
	}
	if feedback.Valid {
		d.Feedback = &feedback.String
	}
	if heldFrom.Valid {
		d.HeldFrom = &heldFrom.String
	}
	return d, nil
}

func (r Repo) GetDesign(ctx context.Context, id string) (domain.DesignProject, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+designColumns+` FROM design_projects WHERE id=?`, id)
	d, err := scanDesign(row.Scan)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) GetDesignTx(ctx context.Context, tx *sql.Tx, id string) (domain.DesignProject, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+designColumns+` FROM design_projects WHERE id=?`, id)
	d, err := scanDesign(row.Scan)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

type DesignFilters struct {
	ShopID          string
	OrderID         string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListDesigns(ctx context.Context, f DesignFilters) ([]domain.DesignProject, error) {
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
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT ` + designColumns + ` FROM design_projects WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DesignProject
	for rows.Next() {
		d, err := scanDesign(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

// ListOpenDatedDesigns returns non-terminal design projects carrying a due
// date, for the deadline sweep.
func (r Repo) ListOpenDatedDesigns(ctx context.Context, shopID string) ([]domain.DesignProject, error) {
	query := `SELECT ` + designColumns + ` FROM design_projects WHERE shop_id=? AND due_date IS NOT NULL AND status NOT IN ('completed','rejected') ORDER BY due_date ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.DesignProject
	for rows.Next() {
		d, err := scanDesign(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}
