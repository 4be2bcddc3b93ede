package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/intervention"
)

const interventionCols = `id, student_id, student_name, type, status, risk_score, risk_level, reason, notes,
escalated, escalation_reason, COALESCE(teacher_id::text, ''), COALESCE(counselor_id::text, ''),
follow_up_required, follow_up_date, triggered_at, acknowledged_at, resolved_at, created_at, updated_at`

type interventionRepository struct {
	db *sqlx.DB
}

var _ intervention.Repository = (*interventionRepository)(nil)

func NewInterventionRepository(db *sqlx.DB) *interventionRepository {
	return &interventionRepository{db: db}
}

func scanIntervention(row rowScanner) (intervention.Intervention, error) {
	var (
		ivn            intervention.Intervention
		followUpDate   sql.NullTime
		acknowledgedAt sql.NullTime
		resolvedAt     sql.NullTime
	)
	err := row.Scan(
		&ivn.ID, &ivn.StudentID, &ivn.StudentName, &ivn.Type, &ivn.Status, &ivn.RiskScore, &ivn.RiskLevel,
		&ivn.Reason, &ivn.Notes, &ivn.Escalated, &ivn.EscalationReason, &ivn.TeacherID, &ivn.CounselorID,
		&ivn.FollowUpRequired, &followUpDate, &ivn.TriggeredAt, &acknowledgedAt, &resolvedAt,
		&ivn.CreatedAt, &ivn.UpdatedAt,
	)
	if err != nil {
		return intervention.Intervention{}, err
	}
	if followUpDate.Valid {
		ivn.FollowUpDate = followUpDate.Time
	}
	if acknowledgedAt.Valid {
		ivn.AcknowledgedAt = acknowledgedAt.Time
	}
	if resolvedAt.Valid {
		ivn.ResolvedAt = resolvedAt.Time
	}
	return ivn, nil
}

// nullTime maps the zero time to NULL.
func nullTime(t sql.NullTime, set bool) sql.NullTime {
	t.Valid = set
	return t
}

func (repo *interventionRepository) CreateIntervention(ctx context.Context, ivn intervention.Intervention, exec ...core.DBExecutor) (intervention.Intervention, error) {
	query := `INSERT INTO intervention (student_id, student_name, type, status, risk_score, risk_level, reason, notes,
escalated, escalation_reason, teacher_id, counselor_id, follow_up_required, follow_up_date,
triggered_at, acknowledged_at, resolved_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, NULLIF($12, '')::uuid, $13, $14, $15, $16, $17, $18, $19)
RETURNING ` + interventionCols
	row := ext(repo.db, exec).QueryRowxContext(ctx, query,
		ivn.StudentID, ivn.StudentName, ivn.Type, ivn.Status, ivn.RiskScore, ivn.RiskLevel, ivn.Reason, ivn.Notes,
		ivn.Escalated, ivn.EscalationReason, ivn.TeacherID, ivn.CounselorID, ivn.FollowUpRequired,
		nullTime(sql.NullTime{Time: ivn.FollowUpDate}, !ivn.FollowUpDate.IsZero()),
		ivn.TriggeredAt,
		nullTime(sql.NullTime{Time: ivn.AcknowledgedAt}, !ivn.AcknowledgedAt.IsZero()),
		nullTime(sql.NullTime{Time: ivn.ResolvedAt}, !ivn.ResolvedAt.IsZero()),
		ivn.CreatedAt, ivn.UpdatedAt,
	)
	created, err := scanIntervention(row)
	if err != nil {
		if isUniqueViolation(err, "intervention_active_uniq") {
			return intervention.Intervention{}, intervention.ErrActiveExists
		}
		return intervention.Intervention{}, errors.Wrap(err, "inserting intervention")
	}
	return created, nil
}

func (repo *interventionRepository) GetInterventionByID(ctx context.Context, id string, exec ...core.DBExecutor) (intervention.Intervention, error) {
	query := `SELECT ` + interventionCols + ` FROM intervention WHERE id = $1`
	ivn, err := scanIntervention(ext(repo.db, exec).QueryRowxContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return intervention.Intervention{}, intervention.ErrNotFound
		}
		return intervention.Intervention{}, errors.Wrap(err, "querying intervention")
	}
	return ivn, nil
}

func (repo *interventionRepository) queryInterventions(ctx context.Context, ex dbExt, query string, args ...interface{}) ([]intervention.Intervention, error) {
	rows, err := ex.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying interventions")
	}
	defer func() { _ = rows.Close() }()

	var ivns []intervention.Intervention
	for rows.Next() {
		ivn, err := scanIntervention(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning intervention")
		}
		ivns = append(ivns, ivn)
	}
	return ivns, errors.Wrap(rows.Err(), "reading interventions")
}

func (repo *interventionRepository) FilterInterventions(ctx context.Context, filter *intervention.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]intervention.Intervention, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.StudentID != "" {
			conds = append(conds, fmt.Sprintf("student_id = %s", arg(filter.StudentID)))
		}
		if filter.Status != "" {
			conds = append(conds, fmt.Sprintf("status = %s", arg(filter.Status)))
		}
		if filter.Type != "" {
			conds = append(conds, fmt.Sprintf("type = %s", arg(filter.Type)))
		}
		if filter.Active != nil {
			op := "="
			if *filter.Active {
				op = "<>"
			}
			conds = append(conds, fmt.Sprintf("status %s 'resolved'", op))
		}
	}

	query := `SELECT ` + interventionCols + ` FROM intervention` + whereClause(conds) + orderClause(ordering, "triggered_at DESC")
	return repo.queryInterventions(ctx, ext(repo.db, exec), query, args...)
}

func (repo *interventionRepository) QueryStudentInterventions(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]intervention.Intervention, error) {
	query := `SELECT ` + interventionCols + ` FROM intervention WHERE student_id = $1 ORDER BY triggered_at DESC`
	return repo.queryInterventions(ctx, ext(repo.db, exec), query, studentID)
}

func (repo *interventionRepository) HasActiveIntervention(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM intervention WHERE student_id = $1 AND status <> 'resolved')`
	err := ext(repo.db, exec).QueryRowxContext(ctx, query, studentID).Scan(&exists)
	return exists, errors.Wrap(err, "checking active interventions")
}

func (repo *interventionRepository) UpdateIntervention(ctx context.Context, ivn intervention.Intervention, exec ...core.DBExecutor) (intervention.Intervention, error) {
	query := `UPDATE intervention
SET status             = $1,
    notes              = $2,
    escalated          = $3,
    escalation_reason  = $4,
    teacher_id         = NULLIF($5, '')::uuid,
    counselor_id       = NULLIF($6, '')::uuid,
    follow_up_required = $7,
    follow_up_date     = $8,
    acknowledged_at    = $9,
    resolved_at        = $10,
    updated_at         = $11
WHERE id = $12
RETURNING ` + interventionCols
	row := ext(repo.db, exec).QueryRowxContext(ctx, query,
		ivn.Status, ivn.Notes, ivn.Escalated, ivn.EscalationReason, ivn.TeacherID, ivn.CounselorID,
		ivn.FollowUpRequired,
		nullTime(sql.NullTime{Time: ivn.FollowUpDate}, !ivn.FollowUpDate.IsZero()),
		nullTime(sql.NullTime{Time: ivn.AcknowledgedAt}, !ivn.AcknowledgedAt.IsZero()),
		nullTime(sql.NullTime{Time: ivn.ResolvedAt}, !ivn.ResolvedAt.IsZero()),
		ivn.UpdatedAt, ivn.ID,
	)
	updated, err := scanIntervention(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return intervention.Intervention{}, intervention.ErrNotFound
		}
		return intervention.Intervention{}, errors.Wrap(err, "updating intervention")
	}
	return updated, nil
}
