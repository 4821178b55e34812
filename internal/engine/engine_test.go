package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"printline/internal/config"
	"printline/internal/db"
	"printline/internal/domain"
	"printline/internal/engine"
	"printline/internal/migrate"
	"printline/internal/workflow"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Owner  domain.Actor
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("shop-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitShop(ctx, "shop-1", "Test Shop", "tester"); err != nil {
		t.Fatalf("init shop: %v", err)
	}
	return testEnv{
		Engine: eng,
		Ctx:    ctx,
		Owner:  domain.Actor{ID: "tester", Name: "Tester", Role: "owner"},
	}
}

func (env testEnv) seedOrder(t *testing.T) domain.Order {
	t.Helper()
	client, err := env.Engine.CreateClient(env.Ctx, engine.ClientCreateOptions{
		ShopID: "shop-1", Name: "ACME", Actor: env.Owner,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	order, err := env.Engine.CreateOrder(env.Ctx, engine.OrderCreateOptions{
		ShopID: "shop-1", ClientID: client.ID, Description: "50 hoodies", Actor: env.Owner,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	job, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
		OrderID: order.ID, Type: "print", Actor: env.Owner,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if job.Status != domain.JobPending {
		t.Fatalf("status = %s", job.Status)
	}

	job, err = env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobInProgress, Actor: env.Owner,
	})
	if err != nil || job.Status != domain.JobInProgress {
		t.Fatalf("to in_progress: %v", err)
	}
	if job.StartTime == nil {
		t.Fatal("start time not stamped")
	}

	env.Engine.Now = func() time.Time { return time.Date(2024, 1, 1, 4, 30, 0, 0, time.UTC) }
	job, err = env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobCompleted, Actor: env.Owner,
	})
	if err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if job.DurationMinutes == nil || *job.DurationMinutes != 270 {
		t.Fatalf("duration = %v, want 270", job.DurationMinutes)
	}

	// terminal: nothing leaves completed
	_, err = env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobInProgress, Actor: env.Owner,
	})
	var invalid workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestTransitionDeniedWithoutCapability(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	job, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
		OrderID: order.ID, Type: "press", Actor: env.Owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	designerActor := domain.Actor{ID: "des-1", Role: "designer"}
	_, err = env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobInProgress, Actor: designerActor,
	})
	var denied workflow.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want PermissionDeniedError", err)
	}
	// the job is untouched
	got, err := env.Engine.Repo.GetJob(env.Ctx, job.ID)
	if err != nil || got.Status != domain.JobPending {
		t.Fatalf("status = %s, err = %v", got.Status, err)
	}
}

func TestTransitionExpectedStatusMismatch(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	job, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
		OrderID: order.ID, Type: "cut", Actor: env.Owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobInProgress, Actor: env.Owner,
	}); err != nil {
		t.Fatal(err)
	}
	// a second caller still believing the job is pending gets a conflict
	_, err = env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{
		ID: job.ID, Target: domain.JobInProgress, ExpectedStatus: domain.JobPending, Actor: env.Owner,
	})
	var invalid workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestDesignReviewCycle(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	d, err := env.Engine.CreateDesign(env.Ctx, engine.DesignCreateOptions{
		OrderID: order.ID, Title: "Front logo", Actor: env.Owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	designerActor := domain.Actor{ID: "des-1", Role: "designer"}
	managerActor := domain.Actor{ID: "mgr-1", Role: "manager"}

	d, err = env.Engine.TransitionDesign(env.Ctx, engine.TransitionOptions{ID: d.ID, Target: domain.DesignInProgress, Actor: designerActor})
	if err != nil {
		t.Fatal(err)
	}
	d, err = env.Engine.TransitionDesign(env.Ctx, engine.TransitionOptions{ID: d.ID, Target: domain.DesignReview, Actor: designerActor})
	if err != nil {
		t.Fatal(err)
	}
	if d.SubmittedAt == nil {
		t.Fatal("submitted_at not stamped")
	}

	// rejection without feedback refused
	_, err = env.Engine.TransitionDesign(env.Ctx, engine.TransitionOptions{ID: d.ID, Target: domain.DesignRejected, Actor: managerActor})
	var guard workflow.GuardFailedError
	if !errors.As(err, &guard) {
		t.Fatalf("err = %v, want GuardFailedError", err)
	}

	d, err = env.Engine.TransitionDesign(env.Ctx, engine.TransitionOptions{
		ID: d.ID, Target: domain.DesignRejected, Actor: managerActor,
		Payload: workflow.Payload{Feedback: "colors off"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Feedback == nil || *d.Feedback != "colors off" {
		t.Fatalf("feedback = %v", d.Feedback)
	}
}

func TestPaymentApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	p, err := env.Engine.CreatePayment(env.Ctx, engine.PaymentCreateOptions{
		OrderID: order.ID, AmountCents: 12500, Actor: env.Owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	accountant := domain.Actor{ID: "acc-1", Role: "accountant"}
	p, err = env.Engine.TransitionPayment(env.Ctx, engine.TransitionOptions{
		ID: p.ID, Target: domain.PaymentApproved, Actor: accountant,
		Payload: workflow.Payload{ApproverID: accountant.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ApprovedBy == nil || *p.ApprovedBy != accountant.ID {
		t.Fatalf("approved_by = %v", p.ApprovedBy)
	}
	// approved is absorbing
	_, err = env.Engine.TransitionPayment(env.Ctx, engine.TransitionOptions{
		ID: p.ID, Target: domain.PaymentRejected, Actor: accountant,
		Payload: workflow.Payload{Reason: "changed my mind"},
	})
	var invalid workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
}

func TestDueAlerts(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	mk := func(typ, due string) {
		t.Helper()
		if _, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
			OrderID: order.ID, Type: typ, DueDate: due, Actor: env.Owner,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// clock is 2024-01-01
	mk("print", "2023-12-30") // overdue
	mk("press", "2024-01-02") // critical
	mk("cut", "2024-01-05")   // warning
	mk("sew", "2024-02-01")   // upcoming

	alerts, err := env.Engine.DueAlerts(env.Ctx, "shop-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 4 {
		t.Fatalf("got %d alerts", len(alerts))
	}
	tiers := make([]string, 0, len(alerts))
	for _, a := range alerts {
		tiers = append(tiers, string(a.Alert.Tier))
	}
	want := []string{"overdue", "critical", "warning", "upcoming"}
	for i := range want {
		if tiers[i] != want[i] {
			t.Fatalf("tiers = %v, want %v", tiers, want)
		}
	}

	sum, err := env.Engine.Status(env.Ctx, "shop-1")
	if err != nil {
		t.Fatal(err)
	}
	if sum.OverdueCount != 1 || sum.CriticalCount != 1 || sum.WarningCount != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	job, err := env.Engine.CreateJob(env.Ctx, engine.JobCreateOptions{
		OrderID: order.ID, Type: "qc", Actor: env.Owner,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{ID: job.ID, Target: domain.JobInProgress, Actor: env.Owner}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.TransitionJob(env.Ctx, engine.TransitionOptions{ID: job.ID, Target: domain.JobCompleted, Actor: env.Owner}); err != nil {
		t.Fatal(err)
	}
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events WHERE entity_id=?`, job.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	if count < 3 {
		t.Fatalf("expected create + 2 transition events, got %d", count)
	}
}

func TestClientDeleteRefusedWithOrders(t *testing.T) {
	env := newTestEnv(t)
	order := env.seedOrder(t)
	if err := env.Engine.DeleteClient(env.Ctx, order.ClientID, env.Owner); err == nil {
		t.Fatal("expected delete refusal while orders exist")
	}
}
