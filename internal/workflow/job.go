package workflow

import (
	"errors"
	"time"

	"printline/internal/domain"
)

// JobMachine builds the transition table for production jobs.
//
// Starting a job stamps StartTime once: resuming from hold keeps the original
// start. Completion requires a start time and derives DurationMinutes from the
// start/end span, clamping negative spans (clock skew) to zero and flagging
// the job for review.
func JobMachine() *Machine[domain.Job] {
	start := func(j domain.Job, now time.Time, _ Payload) domain.Job {
		if j.StartTime == nil {
			j.StartTime = stampPtr(now)
		}
		return j
	}
	return newMachine(domain.KindJob,
		func(j domain.Job) string { return j.Status },
		func(j domain.Job, s string) domain.Job { j.Status = s; return j },
		map[string]map[string]Rule[domain.Job]{
			domain.JobPending: {
				domain.JobInProgress: {Capability: "jobs.execute", Apply: start},
				domain.JobOnHold:     {Capability: "jobs.execute"},
			},
			domain.JobInProgress: {
				domain.JobCompleted: {
					Capability: "jobs.execute",
					Guard: func(j domain.Job, _ Payload) error {
						if j.StartTime == nil {
							return errors.New("job has no start time")
						}
						return nil
					},
					Apply: completeJob,
				},
				domain.JobOnHold: {Capability: "jobs.execute"},
			},
			domain.JobOnHold: {
				domain.JobInProgress: {Capability: "jobs.execute", Apply: start},
			},
		})
}

func completeJob(j domain.Job, now time.Time, _ Payload) domain.Job {
	j.EndTime = stampPtr(now)
	j.Progress = 100
	started, err := parseStamp(*j.StartTime)
	if err != nil {
		// Unparseable start time is a data defect: surface it instead of
		// dropping the completion.
		j.FlaggedForReview = true
		return j
	}
	minutes := int(now.UTC().Sub(started.UTC()) / time.Minute)
	if minutes < 0 {
		minutes = 0
		j.FlaggedForReview = true
	}
	j.DurationMinutes = &minutes
	return j
}
