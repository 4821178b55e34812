package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"printline/internal/domain"
)

// designHoldSources are the statuses a design project may be held from, and
// therefore the only statuses it may resume into.
var designHoldSources = []string{
	domain.DesignNew,
	domain.DesignInProgress,
	domain.DesignReview,
	domain.DesignFinalized,
}

// DesignMachine builds the transition table for design projects.
//
// Holding a project records the status it was held from; the table statically
// allows resuming into any hold source, and a guard pins each project to the
// one it actually came from. Rejection requires reviewer feedback and sends
// the project back through in_progress for rework.
func DesignMachine() *Machine[domain.DesignProject] {
	table := map[string]map[string]Rule[domain.DesignProject]{
		domain.DesignNew: {
			domain.DesignInProgress: {Capability: "design.submit"},
		},
		domain.DesignInProgress: {
			domain.DesignReview: {
				Capability: "design.submit",
				Apply: func(d domain.DesignProject, now time.Time, _ Payload) domain.DesignProject {
					if d.SubmittedAt == nil {
						d.SubmittedAt = stampPtr(now)
					}
					return d
				},
			},
		},
		domain.DesignReview: {
			domain.DesignFinalized: {
				Capability: "design.approve",
				Apply: func(d domain.DesignProject, now time.Time, _ Payload) domain.DesignProject {
					d.FinalizedAt = stampPtr(now)
					return d
				},
			},
			domain.DesignRejected: {
				Capability: "design.approve",
				Guard: func(_ domain.DesignProject, p Payload) error {
					if strings.TrimSpace(p.Feedback) == "" {
						return errors.New("rejection requires feedback")
					}
					return nil
				},
				Apply: func(d domain.DesignProject, _ time.Time, p Payload) domain.DesignProject {
					fb := strings.TrimSpace(p.Feedback)
					d.Feedback = &fb
					return d
				},
			},
		},
		domain.DesignRejected: {
			domain.DesignInProgress: {Capability: "design.submit"},
		},
		domain.DesignFinalized: {
			domain.DesignCompleted: {
				Capability: "design.approve",
				Apply: func(d domain.DesignProject, now time.Time, _ Payload) domain.DesignProject {
					d.CompletedAt = stampPtr(now)
					d.Progress = 100
					return d
				},
			},
		},
		domain.DesignOnHold: {},
	}
	for _, src := range designHoldSources {
		from := src
		table[from][domain.DesignOnHold] = Rule[domain.DesignProject]{
			Capability: "design.submit",
			Apply: func(d domain.DesignProject, _ time.Time, _ Payload) domain.DesignProject {
				held := from
				d.HeldFrom = &held
				return d
			},
		}
		table[domain.DesignOnHold][from] = Rule[domain.DesignProject]{
			Capability: "design.submit",
			Guard: func(d domain.DesignProject, _ Payload) error {
				if d.HeldFrom == nil {
					return errors.New("project has no held-from status")
				}
				if *d.HeldFrom != from {
					return fmt.Errorf("held project must resume into %s", *d.HeldFrom)
				}
				return nil
			},
			Apply: func(d domain.DesignProject, _ time.Time, _ Payload) domain.DesignProject {
				d.HeldFrom = nil
				return d
			},
		}
	}
	return newMachine(domain.KindDesign,
		func(d domain.DesignProject) string { return d.Status },
		func(d domain.DesignProject, s string) domain.DesignProject { d.Status = s; return d },
		table)
}
