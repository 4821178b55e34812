package workflow

import (
	"errors"
	"strings"
	"time"

	"printline/internal/domain"
)

// PaymentMachine builds the transition table for payment records. Both
// approval and rejection are terminal; approval records who approved and
// when, rejection records a mandatory reason.
func PaymentMachine() *Machine[domain.PaymentRecord] {
	return newMachine(domain.KindPayment,
		func(p domain.PaymentRecord) string { return p.Status },
		func(p domain.PaymentRecord, s string) domain.PaymentRecord { p.Status = s; return p },
		map[string]map[string]Rule[domain.PaymentRecord]{
			domain.PaymentPending: {
				domain.PaymentApproved: {
					Capability: "payments.approve",
					Guard: func(_ domain.PaymentRecord, p Payload) error {
						if strings.TrimSpace(p.ApproverID) == "" {
							return errors.New("approval requires an approver id")
						}
						return nil
					},
					Apply: func(rec domain.PaymentRecord, now time.Time, p Payload) domain.PaymentRecord {
						approver := strings.TrimSpace(p.ApproverID)
						rec.ApprovedBy = &approver
						rec.ApprovedAt = stampPtr(now)
						return rec
					},
				},
				domain.PaymentRejected: {
					Capability: "payments.approve",
					Guard: func(_ domain.PaymentRecord, p Payload) error {
						if strings.TrimSpace(p.Reason) == "" {
							return errors.New("rejection requires a reason")
						}
						return nil
					},
					Apply: func(rec domain.PaymentRecord, _ time.Time, p Payload) domain.PaymentRecord {
						reason := strings.TrimSpace(p.Reason)
						rec.RejectedReason = &reason
						return rec
					},
				},
			},
		})
}
