package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printline/internal/config"
	"printline/internal/domain"
	"printline/internal/repo"
)

// ResolveShopAndConfig picks the active shop and ensures a shop + config
// exist in DB, seeding defaults if missing. It prefers overrides, then the
// single-shop DB. If the shop does not exist, it is created on the fly.
func ResolveShopAndConfig(ctx context.Context, workspace, shopOverride, actorID string, r repo.Repo) (string, *config.Config, error) {
	shopID := shopOverride
	if shopID == "" {
		if s, err := r.SingleShop(ctx); err == nil {
			shopID = s.ID
		} else {
			return "", nil, fmt.Errorf("shop not specified; use --shop")
		}
	}
	seedCfg := config.Default(shopID)

	if _, err := r.GetShop(ctx, shopID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		if err := createShop(ctx, r, shopID, seedCfg, actorID); err != nil {
			return "", nil, err
		}
	}
	cfg, err := r.GetShopConfig(ctx, shopID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if err := r.UpsertShopConfig(ctx, shopID, seedCfg); err != nil {
				return "", nil, fmt.Errorf("seed shop config: %w", err)
			}
			cfg = seedCfg
		} else {
			return "", nil, err
		}
	}
	cfg.Shop.ID = shopID
	return shopID, cfg, nil
}

// createShop inserts a minimal shop footprint plus an owner staff record so
// the local user can operate immediately.
func createShop(ctx context.Context, r repo.Repo, shopID string, seedCfg *config.Config, actorID string) error {
	if seedCfg == nil {
		seedCfg = config.Default(shopID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	s := domain.Shop{
		ID:        shopID,
		Name:      shopID,
		Status:    "active",
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO shops(id,name,status,created_at) VALUES (?,?,?,?)`,
		s.ID, s.Name, s.Status, s.CreatedAt); err != nil {
		return fmt.Errorf("insert shop: %w", err)
	}
	if err := r.UpsertShopConfigTx(ctx, tx, shopID, seedCfg); err != nil {
		return fmt.Errorf("insert shop config: %w", err)
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := r.EnsureStaff(ctx, tx, domain.Staff{
		ID:        actorID,
		ShopID:    shopID,
		Name:      actorID,
		Role:      "owner",
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("ensure staff: %w", err)
	}
	return tx.Commit()
}
