package workflow

import (
	"errors"
	"testing"
	"time"

	"printline/internal/authz"
	"printline/internal/domain"
)

func testRegistry() *authz.Registry {
	return authz.NewRegistry(
		map[string]authz.Definition{
			"printer":  {Name: "Printer", Permissions: []string{"jobs.execute"}, Active: true},
			"designer": {Name: "Designer", Permissions: []string{"design.submit"}, Active: true},
			"manager": {Name: "Manager", Permissions: []string{
				"jobs.execute", "design.submit", "design.approve", "payments.approve",
			}, Active: true},
			"intern": {Name: "Intern", Permissions: []string{"jobs.execute"}, Active: false},
		},
		map[string]authz.Definition{
			"production": {Name: "Production", Permissions: []string{"jobs.execute"}, Active: true},
		},
	)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var (
	printer  = domain.Actor{ID: "s1", Role: "printer"}
	designer = domain.Actor{ID: "s2", Role: "designer"}
	manager  = domain.Actor{ID: "s3", Role: "manager"}
	intern   = domain.Actor{ID: "s4", Role: "intern"}
)

func TestJobStartStampsOnce(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Coordinator[domain.Job]{Machine: JobMachine(), Perms: testRegistry(), Now: fixedClock(t0)}

	job := domain.Job{ID: "j1", Status: domain.JobPending}
	got, err := c.Transition(job, domain.JobInProgress, printer, Payload{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.Status != domain.JobInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	if got.StartTime == nil || *got.StartTime != "2024-03-01T09:00:00Z" {
		t.Fatalf("start time = %v", got.StartTime)
	}
	if job.Status != domain.JobPending || job.StartTime != nil {
		t.Fatal("input job was mutated")
	}

	// Hold and resume later: original start time survives.
	held, err := c.Transition(got, domain.JobOnHold, printer, Payload{})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	c.Now = fixedClock(t0.Add(2 * time.Hour))
	resumed, err := c.Transition(held, domain.JobInProgress, printer, Payload{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if *resumed.StartTime != *got.StartTime {
		t.Fatalf("resume rewrote start time: %s", *resumed.StartTime)
	}
}

func TestJobCompletionDerivesDuration(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Coordinator[domain.Job]{Machine: JobMachine(), Perms: testRegistry(), Now: fixedClock(t0)}

	job, err := c.Transition(domain.Job{ID: "j1", Status: domain.JobPending}, domain.JobInProgress, printer, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	c.Now = fixedClock(t0.Add(270 * time.Minute))
	done, err := c.Transition(job, domain.JobCompleted, printer, Payload{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.DurationMinutes == nil || *done.DurationMinutes != 270 {
		t.Fatalf("duration = %v, want 270", done.DurationMinutes)
	}
	if done.EndTime == nil || *done.EndTime != "2024-03-01T13:30:00Z" {
		t.Fatalf("end time = %v", done.EndTime)
	}
	if done.Progress != 100 {
		t.Fatalf("progress = %d", done.Progress)
	}
	if done.FlaggedForReview {
		t.Fatal("clean completion flagged for review")
	}
	if !c.Machine.Terminal(done.Status) {
		t.Fatal("completed should be terminal")
	}
}

func TestJobCompletionClampsNegativeSpan(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c := Coordinator[domain.Job]{Machine: JobMachine(), Perms: testRegistry(), Now: fixedClock(t0)}

	job, err := c.Transition(domain.Job{ID: "j1", Status: domain.JobPending}, domain.JobInProgress, printer, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	// Clock moved backwards between start and completion.
	c.Now = fixedClock(t0.Add(-30 * time.Minute))
	done, err := c.Transition(job, domain.JobCompleted, printer, Payload{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.DurationMinutes == nil || *done.DurationMinutes != 0 {
		t.Fatalf("duration = %v, want 0", done.DurationMinutes)
	}
	if !done.FlaggedForReview {
		t.Fatal("negative span not flagged for review")
	}
}

func TestJobPermissionDenied(t *testing.T) {
	c := Coordinator[domain.Job]{Machine: JobMachine(), Perms: testRegistry(), Now: fixedClock(time.Now())}

	for _, actor := range []domain.Actor{designer, intern, {ID: "ghost", Role: "nobody"}} {
		_, err := c.Transition(domain.Job{Status: domain.JobPending}, domain.JobInProgress, actor, Payload{})
		var denied PermissionDeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("actor %s: err = %v, want PermissionDeniedError", actor.ID, err)
		}
		if denied.Capability != "jobs.execute" {
			t.Fatalf("capability = %s", denied.Capability)
		}
	}

	// Department grant alone is sufficient.
	deptOnly := domain.Actor{ID: "s9", Department: "production"}
	if _, err := c.Transition(domain.Job{Status: domain.JobPending}, domain.JobInProgress, deptOnly, Payload{}); err != nil {
		t.Fatalf("department grant: %v", err)
	}
}

func TestJobInvalidTransition(t *testing.T) {
	c := Coordinator[domain.Job]{Machine: JobMachine(), Perms: testRegistry(), Now: fixedClock(time.Now())}

	cases := []struct{ from, to string }{
		{domain.JobPending, domain.JobCompleted},
		{domain.JobCompleted, domain.JobInProgress},
		{domain.JobOnHold, domain.JobCompleted},
		{domain.JobPending, "shredded"},
	}
	for _, tc := range cases {
		_, err := c.Transition(domain.Job{Status: tc.from}, tc.to, manager, Payload{})
		var invalid InvalidTransitionError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s -> %s: err = %v, want InvalidTransitionError", tc.from, tc.to, err)
		}
		if invalid.From != tc.from || invalid.To != tc.to {
			t.Fatalf("error carries %s -> %s", invalid.From, invalid.To)
		}
	}
}

func TestDesignApprovalFlow(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	c := Coordinator[domain.DesignProject]{Machine: DesignMachine(), Perms: testRegistry(), Now: fixedClock(t0)}

	d := domain.DesignProject{ID: "d1", Status: domain.DesignNew}
	d, err := c.Transition(d, domain.DesignInProgress, designer, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	d, err = c.Transition(d, domain.DesignReview, designer, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if d.SubmittedAt == nil || *d.SubmittedAt != "2024-03-04T10:00:00Z" {
		t.Fatalf("submitted at = %v", d.SubmittedAt)
	}

	// Designers cannot approve their own work.
	if _, err := c.Transition(d, domain.DesignFinalized, designer, Payload{}); err == nil {
		t.Fatal("designer finalized a review")
	}

	c.Now = fixedClock(t0.Add(time.Hour))
	d, err = c.Transition(d, domain.DesignFinalized, manager, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if d.FinalizedAt == nil || *d.FinalizedAt != "2024-03-04T11:00:00Z" {
		t.Fatalf("finalized at = %v", d.FinalizedAt)
	}

	d, err = c.Transition(d, domain.DesignCompleted, manager, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if d.CompletedAt == nil || d.Progress != 100 {
		t.Fatalf("completed at = %v, progress = %d", d.CompletedAt, d.Progress)
	}
	if !c.Machine.Terminal(d.Status) {
		t.Fatal("completed should be terminal")
	}
}

func TestDesignRejectionRequiresFeedback(t *testing.T) {
	c := Coordinator[domain.DesignProject]{Machine: DesignMachine(), Perms: testRegistry(), Now: fixedClock(time.Now())}

	d := domain.DesignProject{ID: "d1", Status: domain.DesignReview}
	_, err := c.Transition(d, domain.DesignRejected, manager, Payload{Feedback: "   "})
	var guard GuardFailedError
	if !errors.As(err, &guard) {
		t.Fatalf("err = %v, want GuardFailedError", err)
	}

	got, err := c.Transition(d, domain.DesignRejected, manager, Payload{Feedback: "logo is off-center"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Feedback == nil || *got.Feedback != "logo is off-center" {
		t.Fatalf("feedback = %v", got.Feedback)
	}
	// Rework path reopens the project.
	if _, err := c.Transition(got, domain.DesignInProgress, designer, Payload{}); err != nil {
		t.Fatalf("rework: %v", err)
	}
}

func TestDesignHoldResumesIntoHeldFrom(t *testing.T) {
	c := Coordinator[domain.DesignProject]{Machine: DesignMachine(), Perms: testRegistry(), Now: fixedClock(time.Now())}

	d := domain.DesignProject{ID: "d1", Status: domain.DesignReview}
	held, err := c.Transition(d, domain.DesignOnHold, designer, Payload{})
	if err != nil {
		t.Fatal(err)
	}
	if held.HeldFrom == nil || *held.HeldFrom != domain.DesignReview {
		t.Fatalf("held from = %v", held.HeldFrom)
	}

	_, err = c.Transition(held, domain.DesignInProgress, designer, Payload{})
	var guard GuardFailedError
	if !errors.As(err, &guard) {
		t.Fatalf("resume into wrong status: err = %v, want GuardFailedError", err)
	}

	back, err := c.Transition(held, domain.DesignReview, designer, Payload{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if back.HeldFrom != nil {
		t.Fatal("held-from not cleared on resume")
	}
}

func TestPaymentApproval(t *testing.T) {
	t0 := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	c := Coordinator[domain.PaymentRecord]{Machine: PaymentMachine(), Perms: testRegistry(), Now: fixedClock(t0)}

	rec := domain.PaymentRecord{ID: "p1", Status: domain.PaymentPending, AmountCents: 125_00}

	_, err := c.Transition(rec, domain.PaymentApproved, manager, Payload{})
	var guard GuardFailedError
	if !errors.As(err, &guard) {
		t.Fatalf("missing approver: err = %v, want GuardFailedError", err)
	}

	got, err := c.Transition(rec, domain.PaymentApproved, manager, Payload{ApproverID: manager.ID})
	if err != nil {
		t.Fatal(err)
	}
	if got.ApprovedBy == nil || *got.ApprovedBy != manager.ID {
		t.Fatalf("approved by = %v", got.ApprovedBy)
	}
	if got.ApprovedAt == nil || *got.ApprovedAt != "2024-03-05T15:00:00Z" {
		t.Fatalf("approved at = %v", got.ApprovedAt)
	}
	if !c.Machine.Terminal(got.Status) {
		t.Fatal("approved should be terminal")
	}
}

func TestPaymentRejectionRequiresReason(t *testing.T) {
	c := Coordinator[domain.PaymentRecord]{Machine: PaymentMachine(), Perms: testRegistry(), Now: fixedClock(time.Now())}

	rec := domain.PaymentRecord{ID: "p1", Status: domain.PaymentPending}
	_, err := c.Transition(rec, domain.PaymentRejected, manager, Payload{Reason: ""})
	var guard GuardFailedError
	if !errors.As(err, &guard) {
		t.Fatalf("err = %v, want GuardFailedError", err)
	}

	got, err := c.Transition(rec, domain.PaymentRejected, manager, Payload{Reason: " duplicate invoice "})
	if err != nil {
		t.Fatal(err)
	}
	if got.RejectedReason == nil || *got.RejectedReason != "duplicate invoice" {
		t.Fatalf("reason = %v", got.RejectedReason)
	}
	if !c.Machine.Terminal(got.Status) {
		t.Fatal("rejected should be terminal")
	}
}

func TestAllowedTransitions(t *testing.T) {
	m := JobMachine()
	got := m.AllowedTransitions(domain.JobPending)
	want := []string{domain.JobInProgress, domain.JobOnHold}
	if len(got) != len(want) {
		t.Fatalf("allowed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allowed = %v, want %v", got, want)
		}
	}
	if m.AllowedTransitions(domain.JobCompleted) != nil {
		t.Fatal("completed should have no transitions")
	}
	if token, ok := m.RequiredCapability(domain.JobPending, domain.JobInProgress); !ok || token != "jobs.execute" {
		t.Fatalf("capability = %s, ok = %v", token, ok)
	}
}
