package repo

import (
	"context"
	"database/sql"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO orders(id,shop_id,client_id,description,due_date,created_at) VALUES (?,?,?,?,?,?)`,
		o.ID, o.ShopID, o.ClientID, nullable(o.Description), nullableStringPtr(o.DueDate), o.CreatedAt)
	return err
}

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	var desc, due sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,shop_id,client_id,description,due_date,created_at FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.ShopID, &o.ClientID, &desc, &due, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	o.Description = desc.String
	if due.Valid {
		o.DueDate = &due.String
	}
	return o, nil
}

type OrderFilters struct {
	ShopID          string
	ClientID        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListOrders(ctx context.Context, f OrderFilters) ([]domain.Order, error) {
	clauses := []string{"shop_id=?"}
	args := []any{f.ShopID}
	if f.ClientID != "" {
		clauses = append(clauses, "client_id=?")
		args = append(args, f.ClientID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT id,shop_id,client_id,description,due_date,created_at FROM orders WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		var o domain.Order
		var desc, due sql.NullString
		if err := rows.Scan(&o.ID, &o.ShopID, &o.ClientID, &desc, &due, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Description = desc.String
		if due.Valid {
			o.DueDate = &due.String
		}
		res = append(res, o)
	}
	return res, nil
}
