package engine

import (
	"context"

	"printline/internal/domain"
	"printline/internal/events"
	"printline/internal/workflow"
)

// TransitionOptions are the shared parameters of a lifecycle transition.
// ExpectedStatus, when set, makes the write conditional: if the persisted
// status differs the transition fails instead of building on stale state.
type TransitionOptions struct {
	ID             string
	Target         string
	ExpectedStatus string
	Actor          domain.Actor
	Payload        workflow.Payload
}

func (e Engine) jobCoordinator() workflow.Coordinator[domain.Job] {
	return workflow.Coordinator[domain.Job]{Machine: workflow.JobMachine(), Perms: e.Perms, Now: e.Now}
}

func (e Engine) designCoordinator() workflow.Coordinator[domain.DesignProject] {
	return workflow.Coordinator[domain.DesignProject]{Machine: workflow.DesignMachine(), Perms: e.Perms, Now: e.Now}
}

func (e Engine) paymentCoordinator() workflow.Coordinator[domain.PaymentRecord] {
	return workflow.Coordinator[domain.PaymentRecord]{Machine: workflow.PaymentMachine(), Perms: e.Perms, Now: e.Now}
}

func (e Engine) TransitionJob(ctx context.Context, opts TransitionOptions) (domain.Job, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, err
	}
	defer tx.Rollback()

	j, err := e.Repo.GetJobTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Job{}, err
	}
	if opts.ExpectedStatus != "" && j.Status != opts.ExpectedStatus {
		return domain.Job{}, workflow.InvalidTransitionError{Kind: domain.KindJob, From: j.Status, To: opts.Target}
	}
	from := j.Status
	next, err := e.jobCoordinator().Transition(j, opts.Target, opts.Actor, opts.Payload)
	if err != nil {
		return domain.Job{}, err
	}
	next.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateJob(ctx, tx, next); err != nil {
		return domain.Job{}, err
	}
	payload := events.EventPayload{"from": from, "to": next.Status}
	if next.DurationMinutes != nil {
		payload["duration_minutes"] = *next.DurationMinutes
	}
	if next.FlaggedForReview && !j.FlaggedForReview {
		payload["flagged_for_review"] = true
	}
	if err := e.Events.Append(ctx, tx, "job.transitioned", next.ShopID, "job", next.ID, opts.Actor.ID, payload); err != nil {
		return domain.Job{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Job{}, err
	}
	return next, nil
}

func (e Engine) TransitionDesign(ctx context.Context, opts TransitionOptions) (domain.DesignProject, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DesignProject{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDesignTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.DesignProject{}, err
	}
	if opts.ExpectedStatus != "" && d.Status != opts.ExpectedStatus {
		return domain.DesignProject{}, workflow.InvalidTransitionError{Kind: domain.KindDesign, From: d.Status, To: opts.Target}
	}
	from := d.Status
	next, err := e.designCoordinator().Transition(d, opts.Target, opts.Actor, opts.Payload)
	if err != nil {
		return domain.DesignProject{}, err
	}
	next.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateDesign(ctx, tx, next); err != nil {
		return domain.DesignProject{}, err
	}
	payload := events.EventPayload{"from": from, "to": next.Status}
	if next.Feedback != nil && d.Feedback == nil {
		payload["feedback"] = *next.Feedback
	}
	if err := e.Events.Append(ctx, tx, "design.transitioned", next.ShopID, "design", next.ID, opts.Actor.ID, payload); err != nil {
		return domain.DesignProject{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DesignProject{}, err
	}
	return next, nil
}

func (e Engine) TransitionPayment(ctx context.Context, opts TransitionOptions) (domain.PaymentRecord, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPaymentTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if opts.ExpectedStatus != "" && p.Status != opts.ExpectedStatus {
		return domain.PaymentRecord{}, workflow.InvalidTransitionError{Kind: domain.KindPayment, From: p.Status, To: opts.Target}
	}
	from := p.Status
	next, err := e.paymentCoordinator().Transition(p, opts.Target, opts.Actor, opts.Payload)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	next.UpdatedAt = e.stamp()
	if err := e.Repo.UpdatePayment(ctx, tx, next); err != nil {
		return domain.PaymentRecord{}, err
	}
	payload := events.EventPayload{"from": from, "to": next.Status}
	if next.RejectedReason != nil {
		payload["reason"] = *next.RejectedReason
	}
	if err := e.Events.Append(ctx, tx, "payment.transitioned", next.ShopID, "payment", next.ID, opts.Actor.ID, payload); err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.PaymentRecord{}, err
	}
	return next, nil
}
