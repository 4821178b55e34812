package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertClient(ctx context.Context, tx *sql.Tx, c domain.Client) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO clients(id,shop_id,name,company,phone,email,created_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.ShopID, c.Name, nullable(c.Company), nullable(c.Phone), nullable(c.Email), c.CreatedAt)
	return err
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var c domain.Client
	var company, phone, email sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,shop_id,name,company,phone,email,created_at FROM clients WHERE id=?`, id).
		Scan(&c.ID, &c.ShopID, &c.Name, &company, &phone, &email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Company = company.String
	c.Phone = phone.String
	c.Email = email.String
	return c, nil
}

type ClientFilters struct {
	ShopID          string
	Search          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListClients(ctx context.Context, f ClientFilters) ([]domain.Client, error) {
	clauses := []string{"shop_id=?"}
	args := []any{f.ShopID}
	if f.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR company LIKE ?)")
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	query := `SELECT id,shop_id,name,company,phone,email,created_at FROM clients WHERE ` +
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
	var res []domain.Client
	for rows.Next() {
		var c domain.Client
		var company, phone, email sql.NullString
		if err := rows.Scan(&c.ID, &c.ShopID, &c.Name, &company, &phone, &email, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Company = company.String
		c.Phone = phone.String
		c.Email = email.String
		res = append(res, c)
	}
	return res, nil
}

func (r Repo) UpdateClient(ctx context.Context, tx *sql.Tx, id string, name, company, phone, email *string) error {
	var (
		fields []string
		args   []any
	)
	if name != nil {
		fields = append(fields, "name=?")
		args = append(args, *name)
	}
	if company != nil {
		fields = append(fields, "company=?")
		args = append(args, nullable(*company))
	}
	if phone != nil {
		fields = append(fields, "phone=?")
		args = append(args, nullable(*phone))
	}
	if email != nil {
		fields = append(fields, "email=?")
		args = append(args, nullable(*email))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE clients SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteClient refuses when orders still reference the client.
func (r Repo) DeleteClient(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM orders WHERE client_id=?`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("client has %d order(s); delete refused", n)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
