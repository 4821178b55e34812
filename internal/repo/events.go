package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"printline/internal/domain"
)

func (r Repo) LatestEvents(ctx context.Context, limit int, shopID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, shopID, evtType, entityKind, entityID)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, shopID, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if shopID != "" {
		clauses = append(clauses, "shop_id=?")
		args = append(args, shopID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,shop_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, shopID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if shopID != "" {
		clauses = append(clauses, "shop_id=?")
		args = append(args, shopID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,shop_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	return r.queryEvents(ctx, query, args...)
}

// LatestEventID returns the most recent event ID for a shop.
func (r Repo) LatestEventID(ctx context.Context, shopID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE shop_id=?`, shopID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var shopID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &shopID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		e.ShopID = shopID.String
		e.EntityID = entityID.String
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
