package repo

import (
	"context"
	"database/sql"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertStaff(ctx context.Context, tx *sql.Tx, s domain.Staff) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO staff(id,shop_id,name,role,department,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.ShopID, s.Name, nullable(s.Role), nullable(s.Department), s.CreatedAt)
	return err
}

// EnsureStaff inserts the staff record if it does not already exist.
func (r Repo) EnsureStaff(ctx context.Context, tx *sql.Tx, s domain.Staff) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO staff(id,shop_id,name,role,department,created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.ShopID, s.Name, nullable(s.Role), nullable(s.Department), s.CreatedAt)
	return err
}

func (r Repo) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	var s domain.Staff
	var role, dept sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,shop_id,name,role,department,created_at FROM staff WHERE id=?`, id).
		Scan(&s.ID, &s.ShopID, &s.Name, &role, &dept, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.Role = role.String
	s.Department = dept.String
	return s, nil
}

func (r Repo) ListStaff(ctx context.Context, shopID string) ([]domain.Staff, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,shop_id,name,role,department,created_at FROM staff WHERE shop_id=? ORDER BY created_at ASC, id ASC`, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Staff
	for rows.Next() {
		var s domain.Staff
		var role, dept sql.NullString
		if err := rows.Scan(&s.ID, &s.ShopID, &s.Name, &role, &dept, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Role = role.String
		s.Department = dept.String
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) UpdateStaff(ctx context.Context, tx *sql.Tx, id string, role, department *string) error {
	if role == nil && department == nil {
		return nil
	}
	var (
		fields []string
		args   []any
	)
	if role != nil {
		fields = append(fields, "role=?")
		args = append(args, nullable(*role))
	}
	if department != nil {
		fields = append(fields, "department=?")
		args = append(args, nullable(*department))
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE staff SET `+strings.Join(fields, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
