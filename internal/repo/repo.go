package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"printline/internal/config"
	"printline/internal/domain"

	"gopkg.in/yaml.v3"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertShop(ctx context.Context, s domain.Shop) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO shops(id,name,status,created_at) VALUES (?,?,?,?)`,
		s.ID, s.Name, s.Status, s.CreatedAt)
	return err
}

func (r Repo) GetShop(ctx context.Context, id string) (domain.Shop, error) {
	var s domain.Shop
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM shops WHERE id=?`, id).
		Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// SingleShop resolves the workspace shop when exactly one exists.
func (r Repo) SingleShop(ctx context.Context) (domain.Shop, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM shops`)
	if err != nil {
		return domain.Shop{}, err
	}
	defer rows.Close()
	var shops []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt); err != nil {
			return domain.Shop{}, err
		}
		shops = append(shops, s)
	}
	if len(shops) == 0 {
		return domain.Shop{}, ErrNotFound
	}
	if len(shops) > 1 {
		return domain.Shop{}, fmt.Errorf("multiple shops exist; specify --shop")
	}
	return shops[0], nil
}

func (r Repo) ListShops(ctx context.Context) ([]domain.Shop, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM shops ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) UpsertShopConfig(ctx context.Context, shopID string, cfg *config.Config) error {
	return upsertShopConfig(ctx, r.DB, nil, shopID, cfg)
}

func (r Repo) UpsertShopConfigTx(ctx context.Context, tx *sql.Tx, shopID string, cfg *config.Config) error {
	return upsertShopConfig(ctx, nil, tx, shopID, cfg)
}

func upsertShopConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, shopID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Shop.ID = shopID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO shop_configs(shop_id,yaml,imported_at) VALUES (?,?,?)
ON CONFLICT(shop_id) DO UPDATE SET yaml=excluded.yaml, imported_at=excluded.imported_at`, shopID, string(payload), now)
	return err
}

func (r Repo) GetShopConfig(ctx context.Context, shopID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT yaml FROM shop_configs WHERE shop_id=?`, shopID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromYAML([]byte(payload))
	if err != nil {
		return nil, err
	}
	if cfg.Shop.ID == "" {
		cfg.Shop.ID = shopID
	}
	return cfg, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
