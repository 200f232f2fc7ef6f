package dummydb

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
)

type evaluationRepository struct {
	db *evaluationTable
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) *evaluationRepository {
	return &evaluationRepository{db: db.evaluation}
}

// clone deep-copies v into dst through JSON, the way the sql store round-trips JSONB columns.
func clone(v, dst interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation, _ ...core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var responses evaluation.Responses
	if err := clone(ev.Responses, &responses); err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "encoding responses")
	}
	ev.ID = uuid.New().String()
	ev.Responses = responses
	ev.CreatedAt = ev.CreatedAt.UTC()
	stored := ev
	repo.db.evaluations[ev.ID] = &stored
	return ev, nil
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter *evaluation.QueryFilter, _ ...core.DBExecutor) ([]evaluation.Evaluation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var ids map[string]bool
	if filter != nil && len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	evals := make([]evaluation.Evaluation, 0, len(repo.db.evaluations))
	for _, ev := range repo.db.evaluations {
		if filter != nil && filter.TeacherID != "" && ev.TeacherID != filter.TeacherID {
			continue
		}
		if ids != nil && !ids[ev.ID] {
			continue
		}
		evals = append(evals, *ev)
	}
	sort.Slice(evals, func(i, j int) bool {
		if !evals[i].CreatedAt.Equal(evals[j].CreatedAt) {
			return evals[i].CreatedAt.After(evals[j].CreatedAt)
		}
		return evals[i].ID < evals[j].ID
	})
	return evals, nil
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, id string, _ ...core.DBExecutor) (evaluation.Evaluation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ev, ok := repo.db.evaluations[id]; ok {
		return *ev, nil
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (repo *evaluationRepository) CreateTemplate(_ context.Context, tmpl evaluation.Template, _ ...core.DBExecutor) (evaluation.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, t := range repo.db.templates {
		if t.Name == tmpl.Name {
			return evaluation.Template{}, evaluation.ErrTemplateExists
		}
	}

	var stored evaluation.Template
	if err := clone(tmpl, &stored); err != nil {
		return evaluation.Template{}, errors.Wrap(err, "encoding template")
	}
	stored.ID = uuid.New().String()
	stored.CreatedAt = tmpl.CreatedAt.UTC()
	repo.db.templates[stored.ID] = &stored
	return stored, nil
}

func (repo *evaluationRepository) QueryTemplates(_ context.Context, _ ...core.DBExecutor) ([]evaluation.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	templates := make([]evaluation.Template, 0, len(repo.db.templates))
	for _, t := range repo.db.templates {
		templates = append(templates, *t)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (repo *evaluationRepository) GetTemplate(_ context.Context, id string, _ ...core.DBExecutor) (evaluation.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.templates[id]; ok {
		return *t, nil
	}
	return evaluation.Template{}, evaluation.ErrTemplateNotFound
}
