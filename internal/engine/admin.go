package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"printline/internal/config"
	"printline/internal/domain"
	"printline/internal/events"
	"printline/internal/repo"
)

// StaffCreateOptions are parameters for adding a staff member.
type StaffCreateOptions struct {
	ID         string
	ShopID     string
	Name       string
	Role       string
	Department string
	Actor      domain.Actor
}

func (e Engine) CreateStaff(ctx context.Context, opts StaffCreateOptions) (domain.Staff, error) {
	if err := e.require(opts.Actor, "staff.manage"); err != nil {
		return domain.Staff{}, err
	}
	if opts.Name == "" {
		return domain.Staff{}, errors.New("name is required")
	}
	if opts.ShopID == "" {
		return domain.Staff{}, errors.New("shop is required")
	}
	if err := e.checkGrantIDs(opts.Role, opts.Department); err != nil {
		return domain.Staff{}, err
	}
	now := e.stamp()
	s := domain.Staff{
		ID:         opts.ID,
		ShopID:     opts.ShopID,
		Name:       opts.Name,
		Role:       opts.Role,
		Department: opts.Department,
		CreatedAt:  now,
	}
	if s.ID == "" {
		s.ID = newID(opts.ShopID, "staff", opts.Name, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Staff{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStaff(ctx, tx, s); err != nil {
		return domain.Staff{}, err
	}
	if err := e.Events.Append(ctx, tx, "staff.created", s.ShopID, "staff", s.ID, opts.Actor.ID, events.EventPayload{"role": s.Role, "department": s.Department}); err != nil {
		return domain.Staff{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Staff{}, err
	}
	return s, nil
}

// StaffUpdateOptions move a staff member between roles or departments;
// nil means unchanged.
type StaffUpdateOptions struct {
	ID         string
	Role       *string
	Department *string
	Actor      domain.Actor
}

func (e Engine) UpdateStaff(ctx context.Context, opts StaffUpdateOptions) (domain.Staff, error) {
	if err := e.require(opts.Actor, "staff.manage"); err != nil {
		return domain.Staff{}, err
	}
	existing, err := e.Repo.GetStaff(ctx, opts.ID)
	if err != nil {
		return domain.Staff{}, err
	}
	role := existing.Role
	if opts.Role != nil {
		role = *opts.Role
	}
	dept := existing.Department
	if opts.Department != nil {
		dept = *opts.Department
	}
	if err := e.checkGrantIDs(role, dept); err != nil {
		return domain.Staff{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Staff{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateStaff(ctx, tx, opts.ID, opts.Role, opts.Department); err != nil {
		return domain.Staff{}, err
	}
	if err := e.Events.Append(ctx, tx, "staff.updated", existing.ShopID, "staff", existing.ID, opts.Actor.ID, events.EventPayload{"role": role, "department": dept}); err != nil {
		return domain.Staff{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Staff{}, err
	}
	return e.Repo.GetStaff(ctx, opts.ID)
}

// checkGrantIDs rejects role or department ids the config does not define.
// Empty ids are allowed: a staff record may have neither.
func (e Engine) checkGrantIDs(role, department string) error {
	if e.Config == nil {
		return nil
	}
	if role != "" {
		if _, ok := e.Config.Roles[role]; !ok {
			return fmt.Errorf("unknown role %q", role)
		}
	}
	if department != "" {
		if _, ok := e.Config.Departments[department]; !ok {
			return fmt.Errorf("unknown department %q", department)
		}
	}
	return nil
}

// APIKeyCreateOptions are parameters for minting an API key.
type APIKeyCreateOptions struct {
	ActorID string
	Name    string
	Actor   domain.Actor
}

// CreateAPIKey mints a new key and returns it alongside the stored record.
// Only the SHA-256 hash is persisted; the plaintext is shown exactly once.
func (e Engine) CreateAPIKey(ctx context.Context, opts APIKeyCreateOptions) (domain.APIKey, string, error) {
	if err := e.require(opts.Actor, "keys.manage"); err != nil {
		return domain.APIKey{}, "", err
	}
	if opts.ActorID == "" {
		return domain.APIKey{}, "", errors.New("actor_id is required")
	}
	if _, err := e.Repo.GetStaff(ctx, opts.ActorID); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("staff %s: %w", opts.ActorID, err)
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return domain.APIKey{}, "", err
	}
	plaintext := "pk_" + hex.EncodeToString(raw)
	now := e.stamp()
	key := domain.APIKey{
		ID:        newID("apikey", opts.ActorID, now, plaintext),
		ActorID:   opts.ActorID,
		Name:      opts.Name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Events.Append(ctx, tx, "apikey.created", "", "apikey", key.ID, opts.Actor.ID, events.EventPayload{"actor_id": key.ActorID}); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plaintext, nil
}

func (e Engine) DeleteAPIKey(ctx context.Context, id string, actor domain.Actor) error {
	if err := e.require(actor, "keys.manage"); err != nil {
		return err
	}
	return e.Repo.DeleteAPIKey(ctx, id)
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string, actor domain.Actor) ([]domain.APIKey, error) {
	if err := e.require(actor, "keys.manage"); err != nil {
		return nil, err
	}
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// ShopConfig returns the persisted configuration for a shop.
func (e Engine) ShopConfig(ctx context.Context, shopID string, actor domain.Actor) (*config.Config, error) {
	if err := e.require(actor, "shop.config.read"); err != nil {
		return nil, err
	}
	return e.Repo.GetShopConfig(ctx, shopID)
}

// ImportShopConfig validates the YAML document and persists it. The running
// process keeps its current capability registry; a restart picks up the new
// grants.
func (e Engine) ImportShopConfig(ctx context.Context, shopID string, data []byte, actor domain.Actor) (*config.Config, error) {
	if err := e.require(actor, "shop.config.write"); err != nil {
		return nil, err
	}
	cfg, err := config.FromYAML(data)
	if err != nil {
		return nil, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertShopConfigTx(ctx, tx, shopID, cfg); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "shop.config_imported", shopID, "shop", shopID, actor.ID, nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cfg, nil
}
