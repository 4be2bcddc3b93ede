package intervention

import (
	"context"
	"fmt"
	"net/mail"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("intervention not found")
	ErrActiveExists = errors.New("student already has an active intervention")
)

type (
	Repository interface {
		CreateIntervention(ctx context.Context, ivn Intervention, exec ...core.DBExecutor) (Intervention, error)
		GetInterventionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Intervention, error)
		// FilterInterventions applies AND operation on set QueryFilter fields.
		FilterInterventions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Intervention, error)
		QueryStudentInterventions(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Intervention, error)
		// HasActiveIntervention reports whether a non-resolved intervention exists for the student.
		HasActiveIntervention(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
		UpdateIntervention(ctx context.Context, ivn Intervention, exec ...core.DBExecutor) (Intervention, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, trigger Trigger) (Intervention, error)
		GetByID(ctx context.Context, id string) (Intervention, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Intervention, error)
		QueryByStudent(ctx context.Context, studentID string) ([]Intervention, error)
		Acknowledge(ctx context.Context, id string) (Intervention, error)
		Start(ctx context.Context, id string) (Intervention, error)
		Resolve(ctx context.Context, id string) (Intervention, error)
		Escalate(ctx context.Context, id, reason string) (Intervention, error)
		Update(ctx context.Context, id string, data UpdateIntervention) (Intervention, error)
		Scan(ctx context.Context, thresholds Thresholds, opts ...attendance.AnalysisOptions) (ScanResult, error)
		MonitorStudent(ctx context.Context, studentID string, thresholds Thresholds, opts ...attendance.AnalysisOptions) (bool, error)
		HealthStatus(ctx context.Context) (HealthStatus, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		attRepo attendance.Repository
		usrRepo user.Repository
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config

		// serializes the check-then-create sequence per student; the DB's partial
		// unique index on active interventions remains the authoritative guard.
		studentMu sync.Map // studentID -> *sync.Mutex
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	db core.DB,
	repo Repository,
	attRepo attendance.Repository,
	usrRepo user.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		attRepo: attRepo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

func (svc *Service) lockStudent(studentID string) func() {
	mu, _ := svc.studentMu.LoadOrStore(studentID, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

// Create persists a new intervention for the trigger unless the student already
// has an active one. Sends alert emails for high-score interventions.
func (svc *Service) Create(ctx context.Context, trigger Trigger) (Intervention, error) {
	defer svc.lockStudent(trigger.StudentID)()

	active, err := svc.repo.HasActiveIntervention(ctx, trigger.StudentID)
	if err != nil {
		return Intervention{}, errors.Wrap(err, "checking active interventions")
	}
	if active {
		return Intervention{}, ErrActiveExists
	}

	ivn, err := svc.repo.CreateIntervention(ctx, trigger.Intervention())
	if err != nil {
		return Intervention{}, errors.Wrap(err, "creating intervention")
	}

	svc.sendAlerts(ctx, ivn)
	return ivn, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Intervention, error) {
	return svc.repo.GetInterventionByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Intervention, error) {
	return svc.repo.FilterInterventions(ctx, filter, ordering)
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID string) ([]Intervention, error) {
	return svc.repo.QueryStudentInterventions(ctx, studentID)
}

func (svc *Service) transition(ctx context.Context, id string, apply func(*Intervention) error) (Intervention, error) {
	ivn, err := svc.repo.GetInterventionByID(ctx, id)
	if err != nil {
		return Intervention{}, errors.Wrap(err, "finding intervention")
	}
	if err = apply(&ivn); err != nil {
		return Intervention{}, err
	}
	ivn, err = svc.repo.UpdateIntervention(ctx, ivn)
	return ivn, errors.Wrap(err, "updating intervention")
}

func (svc *Service) Acknowledge(ctx context.Context, id string) (Intervention, error) {
	return svc.transition(ctx, id, (*Intervention).Acknowledge)
}

func (svc *Service) Start(ctx context.Context, id string) (Intervention, error) {
	return svc.transition(ctx, id, (*Intervention).Start)
}

func (svc *Service) Resolve(ctx context.Context, id string) (Intervention, error) {
	return svc.transition(ctx, id, (*Intervention).Resolve)
}

func (svc *Service) Escalate(ctx context.Context, id, reason string) (Intervention, error) {
	return svc.transition(ctx, id, func(ivn *Intervention) error {
		return ivn.Escalate(reason)
	})
}

func (svc *Service) Update(ctx context.Context, id string, data UpdateIntervention) (Intervention, error) {
	return svc.transition(ctx, id, func(ivn *Intervention) error {
		if data.Notes != "" {
			ivn.Notes = data.Notes
		}
		if data.CounselorID != "" {
			ivn.CounselorID = data.CounselorID
		}
		if data.TeacherID != "" {
			ivn.TeacherID = data.TeacherID
		}
		ivn.UpdatedAt = nowFunc().UTC()
		return nil
	})
}

// sendAlerts emails all admins when the intervention's risk score crosses the
// alert threshold; counselor referrals additionally alert all counselors.
func (svc *Service) sendAlerts(ctx context.Context, ivn Intervention) {
	if ivn.RiskScore < svc.conf.Scan.AlertScoreThreshold {
		return
	}

	admins, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{Roles: user.AdminRoles}, nil)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("querying admins for alert: %v", err), err)
		return
	}
	if to := addresses(admins); len(to) > 0 {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           to,
			Subject:      fmt.Sprintf("High-Risk Student Alert: %s (Score: %.0f)", ivn.StudentName, ivn.RiskScore),
			TemplateName: "intervention_alert",
			TemplateData: ivn,
		})
	}

	if ivn.Type != TypeCounselorReferral {
		return
	}
	counselors, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{Roles: user.CounselorRoles}, nil)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("querying counselors for alert: %v", err), err)
		return
	}
	if to := addresses(counselors); len(to) > 0 {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           to,
			Subject:      fmt.Sprintf("URGENT: Counselor Referral - %s", ivn.StudentName),
			TemplateName: "counselor_referral",
			TemplateData: ivn,
		})
	}
}

func addresses(users []user.User) []mail.Address {
	addrs := make([]mail.Address, 0, len(users))
	for _, usr := range users {
		if usr.Email == "" {
			continue
		}
		addrs = append(addrs, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	return addrs
}
