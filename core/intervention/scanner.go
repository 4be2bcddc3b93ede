package intervention

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/user"
)

// ScanResult summarizes one pass over the student population.
type ScanResult struct {
	Scanned   int       `json:"scanned"`
	Triggered int       `json:"triggered"`
	Skipped   int       `json:"skipped"`
	Errors    []string  `json:"errors,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// HealthStatus reports scan-relevant aggregate counts.
type HealthStatus struct {
	ActiveInterventions   int `json:"active_interventions"`
	ResolvedInterventions int `json:"resolved_interventions"`
	EscalatedCount        int `json:"escalated_count"`
}

// MonitorStudent assesses a single student's attendance and opens an
// intervention when the trigger conditions hold. Returns true when one was
// created. Students with no attendance data or an active intervention are
// left untouched.
func (svc *Service) MonitorStudent(ctx context.Context, studentID string, thresholds Thresholds, opts ...attendance.AnalysisOptions) (bool, error) {
	events, err := svc.attRepo.QueryStudentEvents(ctx, studentID, "")
	if err != nil {
		return false, errors.Wrap(err, "querying attendance events")
	}
	if len(events) == 0 {
		return false, nil
	}

	active, err := svc.repo.HasActiveIntervention(ctx, studentID)
	if err != nil {
		return false, errors.Wrap(err, "checking active interventions")
	}
	if active {
		return false, nil
	}

	assessment := attendance.AssessRisk(events, opts...)
	if !ShouldTrigger(assessment, thresholds) {
		return false, nil
	}

	usr, err := svc.usrRepo.GetUserByID(ctx, studentID)
	if err != nil {
		return false, errors.Wrap(err, "finding student")
	}

	trigger := NewTrigger(studentID, usr.Name, assessment, thresholds)
	if _, err = svc.Create(ctx, trigger); err != nil {
		if errors.Is(err, ErrActiveExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Scan runs MonitorStudent over every active student. Per-student failures are
// collected in the result rather than aborting the pass.
func (svc *Service) Scan(ctx context.Context, thresholds Thresholds, opts ...attendance.AnalysisOptions) (ScanResult, error) {
	start := nowFunc().UTC()
	res := ScanResult{StartedAt: start}

	isActive := true
	students, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles, IsActive: &isActive}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying students")
	}

	for _, student := range students {
		select {
		case <-ctx.Done():
			res.Duration = nowFunc().UTC().Sub(start).String()
			return res, ctx.Err()
		default:
		}

		res.Scanned++
		triggered, err := svc.MonitorStudent(ctx, student.ID, thresholds, opts...)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("student %s: %v", student.ID, err))
			continue
		}
		if triggered {
			res.Triggered++
		} else {
			res.Skipped++
		}
	}

	res.Duration = nowFunc().UTC().Sub(start).String()
	svc.logger.Info(fmt.Sprintf(
		"attendance scan done: scanned=%d triggered=%d skipped=%d errors=%d in %s",
		res.Scanned, res.Triggered, res.Skipped, len(res.Errors), res.Duration,
	))
	return res, nil
}

func (svc *Service) HealthStatus(ctx context.Context) (HealthStatus, error) {
	all, err := svc.repo.FilterInterventions(ctx, nil, nil)
	if err != nil {
		return HealthStatus{}, errors.Wrap(err, "querying interventions")
	}
	var hs HealthStatus
	for _, ivn := range all {
		if ivn.Active() {
			hs.ActiveInterventions++
		} else {
			hs.ResolvedInterventions++
		}
		if ivn.Escalated {
			hs.EscalatedCount++
		}
	}
	return hs, nil
}

// Runner periodically scans all students until the context is canceled.
// It is meant to be run in its own goroutine.
func (svc *Service) Runner(ctx context.Context, interval time.Duration, thresholds Thresholds) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Scan(ctx, thresholds); err != nil && !errors.Is(err, context.Canceled) {
				svc.logger.Error(fmt.Sprintf("attendance scan failed: %v", err), err)
			}
		}
	}
}
