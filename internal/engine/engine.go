package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"printline/internal/authz"
	"printline/internal/config"
	"printline/internal/deadline"
	"printline/internal/domain"
	"printline/internal/events"
	"printline/internal/repo"
	"printline/internal/workflow"
)

// Engine owns every state-changing operation. Each write runs in a single
// transaction that also appends the matching audit event, so the event log
// never disagrees with the entity tables.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Perms  *authz.Registry
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
	if cfg != nil {
		e.Perms = cfg.Registry()
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) require(actor domain.Actor, capability string) error {
	if !e.Perms.HasCapability(actor, capability) {
		return workflow.PermissionDeniedError{Capability: capability}
	}
	return nil
}

func newID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "|"))).String()
}

// InitShop initializes a new shop with migrations already run.
func (e Engine) InitShop(ctx context.Context, shopID, name, actorID string) (domain.Shop, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Shop{}, err
	}
	defer tx.Rollback()

	if name == "" {
		name = shopID
	}
	s := domain.Shop{
		ID:        shopID,
		Name:      name,
		Status:    "active",
		CreatedAt: e.stamp(),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO shops(id,name,status,created_at) VALUES (?,?,?,?)`,
		s.ID, s.Name, s.Status, s.CreatedAt); err != nil {
		return domain.Shop{}, fmt.Errorf("insert shop: %w", err)
	}
	if err := e.Repo.UpsertShopConfigTx(ctx, tx, s.ID, config.Default(s.ID)); err != nil {
		return domain.Shop{}, fmt.Errorf("insert shop config: %w", err)
	}
	if actorID != "" {
		// The initializing actor becomes the shop owner so the shop is
		// operable immediately.
		if err := e.Repo.EnsureStaff(ctx, tx, domain.Staff{
			ID:        actorID,
			ShopID:    s.ID,
			Name:      actorID,
			Role:      "owner",
			CreatedAt: s.CreatedAt,
		}); err != nil {
			return domain.Shop{}, fmt.Errorf("ensure owner: %w", err)
		}
	}
	if err := e.Events.Append(ctx, tx, "shop.init", s.ID, "shop", s.ID, actorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Shop{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Shop{}, err
	}
	return s, nil
}

// ClientCreateOptions are parameters for registering a client.
type ClientCreateOptions struct {
	ID      string
	ShopID  string
	Name    string
	Company string
	Phone   string
	Email   string
	Actor   domain.Actor
}

func (e Engine) CreateClient(ctx context.Context, opts ClientCreateOptions) (domain.Client, error) {
	if err := e.require(opts.Actor, "clients.create"); err != nil {
		return domain.Client{}, err
	}
	if opts.Name == "" {
		return domain.Client{}, errors.New("name is required")
	}
	if opts.ShopID == "" {
		return domain.Client{}, errors.New("shop is required")
	}
	now := e.stamp()
	c := domain.Client{
		ID:        opts.ID,
		ShopID:    opts.ShopID,
		Name:      opts.Name,
		Company:   opts.Company,
		Phone:     opts.Phone,
		Email:     opts.Email,
		CreatedAt: now,
	}
	if c.ID == "" {
		c.ID = newID(opts.ShopID, "client", opts.Name, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertClient(ctx, tx, c); err != nil {
		return domain.Client{}, err
	}
	if err := e.Events.Append(ctx, tx, "client.created", c.ShopID, "client", c.ID, opts.Actor.ID, events.EventPayload{"name": c.Name}); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return c, nil
}

// ClientUpdateOptions carries partial client updates; nil means unchanged.
type ClientUpdateOptions struct {
	ID      string
	Name    *string
	Company *string
	Phone   *string
	Email   *string
	Actor   domain.Actor
}

func (e Engine) UpdateClient(ctx context.Context, opts ClientUpdateOptions) (domain.Client, error) {
	if err := e.require(opts.Actor, "clients.update"); err != nil {
		return domain.Client{}, err
	}
	if opts.Name != nil && *opts.Name == "" {
		return domain.Client{}, errors.New("name cannot be empty")
	}
	existing, err := e.Repo.GetClient(ctx, opts.ID)
	if err != nil {
		return domain.Client{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Client{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateClient(ctx, tx, opts.ID, opts.Name, opts.Company, opts.Phone, opts.Email); err != nil {
		return domain.Client{}, err
	}
	if err := e.Events.Append(ctx, tx, "client.updated", existing.ShopID, "client", existing.ID, opts.Actor.ID, nil); err != nil {
		return domain.Client{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Client{}, err
	}
	return e.Repo.GetClient(ctx, opts.ID)
}

func (e Engine) DeleteClient(ctx context.Context, id string, actor domain.Actor) error {
	if err := e.require(actor, "clients.delete"); err != nil {
		return err
	}
	existing, err := e.Repo.GetClient(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteClient(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "client.deleted", existing.ShopID, "client", id, actor.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// OrderCreateOptions are parameters for opening an order.
type OrderCreateOptions struct {
	ID          string
	ShopID      string
	ClientID    string
	Description string
	DueDate     string
	Actor       domain.Actor
}

func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.Order, error) {
	if err := e.require(opts.Actor, "orders.create"); err != nil {
		return domain.Order{}, err
	}
	if opts.ShopID == "" {
		return domain.Order{}, errors.New("shop is required")
	}
	client, err := e.Repo.GetClient(ctx, opts.ClientID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("client %s: %w", opts.ClientID, err)
	}
	if client.ShopID != opts.ShopID {
		return domain.Order{}, errors.New("client in different shop")
	}
	due, err := optionalDate(opts.DueDate)
	if err != nil {
		return domain.Order{}, err
	}
	now := e.stamp()
	o := domain.Order{
		ID:          opts.ID,
		ShopID:      opts.ShopID,
		ClientID:    opts.ClientID,
		Description: opts.Description,
		DueDate:     due,
		CreatedAt:   now,
	}
	if o.ID == "" {
		o.ID = newID(opts.ShopID, "order", opts.ClientID, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertOrder(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	if err := e.Events.Append(ctx, tx, "order.created", o.ShopID, "order", o.ID, opts.Actor.ID, events.EventPayload{"client_id": o.ClientID}); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// jobTypes are the production step kinds a shop runs.
var jobTypes = map[string]bool{
	"design": true, "print": true, "press": true, "cut": true,
	"sew": true, "qc": true, "iron": true,
}

// JobCreateOptions are parameters for scheduling a production job.
type JobCreateOptions struct {
	ID       string
	ShopID   string
	OrderID  string
	Type     string
	Priority int
	DueDate  string
	Actor    domain.Actor
}

func (e Engine) CreateJob(ctx context.Context, opts JobCreateOptions) (domain.Job, error) {
	if err := e.require(opts.Actor, "jobs.create"); err != nil {
		return domain.Job{}, err
	}
	if !jobTypes[opts.Type] {
		return domain.Job{}, fmt.Errorf("unknown job type %q", opts.Type)
	}
	order, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("order %s: %w", opts.OrderID, err)
	}
	if opts.ShopID == "" {
		opts.ShopID = order.ShopID
	}
	if order.ShopID != opts.ShopID {
		return domain.Job{}, errors.New("order in different shop")
	}
	due, err := optionalDate(opts.DueDate)
	if err != nil {
		return domain.Job{}, err
	}
	if due == nil {
		due = order.DueDate
	}
	now := e.stamp()
	j := domain.Job{
		ID:        opts.ID,
		ShopID:    opts.ShopID,
		OrderID:   opts.OrderID,
		Type:      opts.Type,
		Status:    domain.JobPending,
		Priority:  opts.Priority,
		DueDate:   due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if j.ID == "" {
		j.ID = newID(opts.ShopID, "job", opts.OrderID, opts.Type, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertJob(ctx, tx, j); err != nil {
		return domain.Job{}, err
	}
	if err := e.Events.Append(ctx, tx, "job.created", j.ShopID, "job", j.ID, opts.Actor.ID, events.EventPayload{"type": j.Type, "status": j.Status}); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

// DesignCreateOptions are parameters for opening a design project.
type DesignCreateOptions struct {
	ID       string
	ShopID   string
	OrderID  string
	Title    string
	Priority int
	DueDate  string
	Actor    domain.Actor
}

func (e Engine) CreateDesign(ctx context.Context, opts DesignCreateOptions) (domain.DesignProject, error) {
	if err := e.require(opts.Actor, "designs.create"); err != nil {
		return domain.DesignProject{}, err
	}
	if opts.Title == "" {
		return domain.DesignProject{}, errors.New("title is required")
	}
	order, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		return domain.DesignProject{}, fmt.Errorf("order %s: %w", opts.OrderID, err)
	}
	if opts.ShopID == "" {
		opts.ShopID = order.ShopID
	}
	if order.ShopID != opts.ShopID {
		return domain.DesignProject{}, errors.New("order in different shop")
	}
	due, err := optionalDate(opts.DueDate)
	if err != nil {
		return domain.DesignProject{}, err
	}
	now := e.stamp()
	d := domain.DesignProject{
		ID:        opts.ID,
		ShopID:    opts.ShopID,
		OrderID:   opts.OrderID,
		Title:     opts.Title,
		Status:    domain.DesignNew,
		Priority:  opts.Priority,
		DueDate:   due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.ID == "" {
		d.ID = newID(opts.ShopID, "design", opts.OrderID, opts.Title, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DesignProject{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDesign(ctx, tx, d); err != nil {
		return domain.DesignProject{}, err
	}
	if err := e.Events.Append(ctx, tx, "design.created", d.ShopID, "design", d.ID, opts.Actor.ID, events.EventPayload{"title": d.Title}); err != nil {
		return domain.DesignProject{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DesignProject{}, err
	}
	return d, nil
}

// PaymentCreateOptions are parameters for recording a pending payment.
type PaymentCreateOptions struct {
	ID          string
	ShopID      string
	OrderID     string
	AmountCents int64
	Actor       domain.Actor
}

func (e Engine) CreatePayment(ctx context.Context, opts PaymentCreateOptions) (domain.PaymentRecord, error) {
	if err := e.require(opts.Actor, "payments.create"); err != nil {
		return domain.PaymentRecord{}, err
	}
	if opts.AmountCents <= 0 {
		return domain.PaymentRecord{}, errors.New("amount must be positive")
	}
	order, err := e.Repo.GetOrder(ctx, opts.OrderID)
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("order %s: %w", opts.OrderID, err)
	}
	if opts.ShopID == "" {
		opts.ShopID = order.ShopID
	}
	if order.ShopID != opts.ShopID {
		return domain.PaymentRecord{}, errors.New("order in different shop")
	}
	now := e.stamp()
	p := domain.PaymentRecord{
		ID:          opts.ID,
		ShopID:      opts.ShopID,
		OrderID:     opts.OrderID,
		AmountCents: opts.AmountCents,
		Status:      domain.PaymentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.ID == "" {
		p.ID = newID(opts.ShopID, "payment", opts.OrderID, now)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPayment(ctx, tx, p); err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := e.Events.Append(ctx, tx, "payment.created", p.ShopID, "payment", p.ID, opts.Actor.ID, events.EventPayload{"amount_cents": p.AmountCents}); err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PaymentRecord{}, err
	}
	return p, nil
}

func optionalDate(v string) (*string, error) {
	if v == "" {
		return nil, nil
	}
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		// Bare dates are accepted and normalized to midnight UTC.
		d, derr := time.Parse("2006-01-02", v)
		if derr != nil {
			return nil, fmt.Errorf("invalid date %q", v)
		}
		s := d.UTC().Format(time.RFC3339)
		return &s, nil
	}
	return &v, nil
}

// StatusSummary aggregates the shop's open work for dashboards.
type StatusSummary struct {
	ShopID        string         `json:"shop_id"`
	JobsByStatus  map[string]int `json:"jobs_by_status"`
	OverdueCount  int            `json:"overdue_count"`
	CriticalCount int            `json:"critical_count"`
	WarningCount  int            `json:"warning_count"`
}

func (e Engine) Status(ctx context.Context, shopID string) (StatusSummary, error) {
	counts, err := e.Repo.CountJobsByStatus(ctx, shopID)
	if err != nil {
		return StatusSummary{}, err
	}
	sum := StatusSummary{ShopID: shopID, JobsByStatus: counts}
	alerts, err := e.DueAlerts(ctx, shopID)
	if err != nil {
		return StatusSummary{}, err
	}
	for _, a := range alerts {
		switch a.Alert.Tier {
		case deadline.TierOverdue:
			sum.OverdueCount++
		case deadline.TierCritical:
			sum.CriticalCount++
		case deadline.TierWarning:
			sum.WarningCount++
		}
	}
	return sum, nil
}

// DueAlert pairs an open entity with its deadline classification.
type DueAlert struct {
	Kind    string         `json:"kind"`
	ID      string         `json:"id"`
	OrderID string         `json:"order_id"`
	Title   string         `json:"title,omitempty"`
	DueDate string         `json:"due_date" format:"date-time"`
	Alert   deadline.Alert `json:"alert"`
}

// DueAlerts classifies every open, dated job and design project against the
// configured thresholds. Entities whose due date fails to parse are skipped.
func (e Engine) DueAlerts(ctx context.Context, shopID string) ([]DueAlert, error) {
	prodTh := deadline.DefaultThresholds()
	designTh := deadline.DefaultThresholds()
	if e.Config != nil {
		prodTh = e.Config.Deadlines.Production
		designTh = e.Config.Deadlines.Design
	}
	now := e.now()
	var res []DueAlert

	jobs, err := e.Repo.ListOpenDatedJobs(ctx, shopID)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		due, err := time.Parse(time.RFC3339, *j.DueDate)
		if err != nil {
			continue
		}
		res = append(res, DueAlert{
			Kind:    domain.KindJob,
			ID:      j.ID,
			OrderID: j.OrderID,
			Title:   j.Type,
			DueDate: *j.DueDate,
			Alert:   deadline.Classify(due, now, j.Progress, prodTh),
		})
	}

	designs, err := e.Repo.ListOpenDatedDesigns(ctx, shopID)
	if err != nil {
		return nil, err
	}
	for _, d := range designs {
		due, err := time.Parse(time.RFC3339, *d.DueDate)
		if err != nil {
			continue
		}
		res = append(res, DueAlert{
			Kind:    domain.KindDesign,
			ID:      d.ID,
			OrderID: d.OrderID,
			Title:   d.Title,
			DueDate: *d.DueDate,
			Alert:   deadline.Classify(due, now, d.Progress, designTh),
		})
	}

	// Most urgent first.
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Alert.DaysRemaining < res[j].Alert.DaysRemaining
	})
	return res, nil
}
