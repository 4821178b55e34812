package repo

import (
	"context"
	"database/sql"
	"strings"

	"printline/internal/domain"
)

func (r Repo) InsertPayment(ctx context.Context, tx *sql.Tx, p domain.PaymentRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO payments(id,shop_id,order_id,amount_cents,status,approved_by,approved_at,rejected_reason,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ShopID, p.OrderID, p.AmountCents, p.Status, nullableStringPtr(p.ApprovedBy),
		nullableStringPtr(p.ApprovedAt), nullableStringPtr(p.RejectedReason), p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) UpdatePayment(ctx context.Context, tx *sql.Tx, p domain.PaymentRecord) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET status=?, approved_by=?, approved_at=?, rejected_reason=?, updated_at=? WHERE id=?`,
		p.Status, nullableStringPtr(p.ApprovedBy), nullableStringPtr(p.ApprovedAt),
		nullableStringPtr(p.RejectedReason), p.UpdatedAt, p.ID)
	return err
}

const paymentColumns = `id,shop_id,order_id,amount_cents,status,approved_by,approved_at,rejected_reason,created_at,updated_at`

func scanPayment(scan func(dest ...any) error) (domain.PaymentRecord, error) {
	var p domain.PaymentRecord
	var approvedBy, approvedAt, reason sql.NullString
	err := scan(&p.ID, &p.ShopID, &p.OrderID, &p.AmountCents, &p.Status, &approvedBy, &approvedAt, &reason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if approvedBy.Valid {
		p.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		p.ApprovedAt = &approvedAt.String
	}
	if reason.Valid {
		p.RejectedReason = &reason.String
	}
	return p, nil
}

func (r Repo) GetPayment(ctx context.Context, id string) (domain.PaymentRecord, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=?`, id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) GetPaymentTx(ctx context.Context, tx *sql.Tx, id string) (domain.PaymentRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=?`, id)
	p, err := scanPayment(row.Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

type PaymentFilters struct {
	ShopID          string
	OrderID         string
	Status          string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListPayments(ctx context.Context, f PaymentFilters) ([]domain.PaymentRecord, error) {
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
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}
