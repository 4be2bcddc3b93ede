package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/intervention"
)

type interventionRepository struct {
	db *interventionTable
}

var _ intervention.Repository = (*interventionRepository)(nil)

func NewInterventionRepository(db *DB) *interventionRepository {
	return &interventionRepository{db: db.intervention}
}

func (repo *interventionRepository) query() []intervention.Intervention {
	ivns := make([]intervention.Intervention, 0, len(repo.db.table))
	for _, ivn := range repo.db.table {
		ivns = append(ivns, *ivn)
	}
	sort.Slice(ivns, func(i, j int) bool { return ivns[i].TriggeredAt.After(ivns[j].TriggeredAt) })
	return ivns
}

func (repo *interventionRepository) CreateIntervention(_ context.Context, ivn intervention.Intervention, _ ...core.DBExecutor) (intervention.Intervention, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if existing.StudentID == ivn.StudentID && existing.Active() {
			return intervention.Intervention{}, intervention.ErrActiveExists
		}
	}
	if ivn.ID == "" {
		ivn.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ivn.CreatedAt.IsZero() {
		ivn.CreatedAt = now
	}
	if ivn.UpdatedAt.IsZero() {
		ivn.UpdatedAt = now
	}
	repo.db.table[ivn.ID] = &ivn
	return ivn, nil
}

func (repo *interventionRepository) GetInterventionByID(_ context.Context, id string, _ ...core.DBExecutor) (intervention.Intervention, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ivn, ok := repo.db.table[id]; ok {
		return *ivn, nil
	}
	return intervention.Intervention{}, intervention.ErrNotFound
}

func (repo *interventionRepository) FilterInterventions(_ context.Context, filter *intervention.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]intervention.Intervention, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ivns []intervention.Intervention
	for _, ivn := range repo.query() {
		if filter != nil && !matchIntervention(ivn, filter) {
			continue
		}
		ivns = append(ivns, ivn)
	}
	return ivns, nil
}

func matchIntervention(ivn intervention.Intervention, filter *intervention.QueryFilter) bool {
	if filter.StudentID != "" && ivn.StudentID != filter.StudentID {
		return false
	}
	if filter.Status != "" && ivn.Status != filter.Status {
		return false
	}
	if filter.Type != "" && ivn.Type != filter.Type {
		return false
	}
	if filter.Active != nil && ivn.Active() != *filter.Active {
		return false
	}
	return true
}

func (repo *interventionRepository) QueryStudentInterventions(_ context.Context, studentID string, _ ...core.DBExecutor) ([]intervention.Intervention, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ivns []intervention.Intervention
	for _, ivn := range repo.query() {
		if ivn.StudentID == studentID {
			ivns = append(ivns, ivn)
		}
	}
	return ivns, nil
}

func (repo *interventionRepository) HasActiveIntervention(_ context.Context, studentID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ivn := range repo.db.table {
		if ivn.StudentID == studentID && ivn.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (repo *interventionRepository) UpdateIntervention(_ context.Context, ivn intervention.Intervention, _ ...core.DBExecutor) (intervention.Intervention, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[ivn.ID]; !ok {
		return intervention.Intervention{}, intervention.ErrNotFound
	}
	repo.db.table[ivn.ID] = &ivn
	return ivn, nil
}
