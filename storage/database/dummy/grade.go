package dummydb

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) *gradeRepository {
	return &gradeRepository{db: db.grade}
}

func gradeKey(teacherID string, month, year int) string {
	return fmt.Sprintf("%s|%02d|%d", teacherID, month, year)
}

func copyGrade(g *grade.TeacherGrade) grade.TeacherGrade {
	c := *g
	c.EvaluationIDs = append([]string{}, g.EvaluationIDs...)
	c.TCEvaluationIDs = append([]string{}, g.TCEvaluationIDs...)
	return c
}

// sorted returns the teacher's grades (every grade when teacherID is empty), latest first.
func (repo *gradeRepository) sorted(teacherID string, byPeriod bool) []grade.TeacherGrade {
	grades := make([]grade.TeacherGrade, 0, len(repo.db.table))
	for _, g := range repo.db.table {
		if teacherID == "" || g.TeacherID == teacherID {
			grades = append(grades, copyGrade(g))
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		a, b := grades[i], grades[j]
		if byPeriod && (a.Year != b.Year || a.Month != b.Month) {
			return a.Year > b.Year || (a.Year == b.Year && a.Month > b.Month)
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return grades
}

func (repo *gradeRepository) QueryGrades(_ context.Context, _ ...core.DBExecutor) ([]grade.TeacherGrade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.missing {
		return nil, grade.ErrTableMissing
	}
	return repo.sorted("", false), nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, filter grade.GetFilter, _ ...core.DBExecutor) (grade.TeacherGrade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.db.missing {
		return grade.TeacherGrade{}, grade.ErrTableMissing
	}
	if filter.Month == 0 && filter.Year == 0 {
		if grades := repo.sorted(filter.TeacherID, true); len(grades) > 0 {
			return grades[0], nil
		}
		return grade.TeacherGrade{}, grade.ErrNotFound
	}
	if g, ok := repo.db.table[gradeKey(filter.TeacherID, filter.Month, filter.Year)]; ok {
		return copyGrade(g), nil
	}
	return grade.TeacherGrade{}, grade.ErrNotFound
}

func (repo *gradeRepository) UpsertGrade(_ context.Context, g grade.TeacherGrade, ch evaluation.Channel) (grade.TeacherGrade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.missing {
		return grade.TeacherGrade{}, grade.ErrTableMissing
	}

	key := gradeKey(g.TeacherID, g.Month, g.Year)
	stored, ok := repo.db.table[key]
	if !ok {
		stored = &grade.TeacherGrade{
			ID:              uuid.New().String(),
			TeacherID:       g.TeacherID,
			EvaluationIDs:   []string{},
			TCEvaluationIDs: []string{},
			Month:           g.Month,
			Year:            g.Year,
			CreatedAt:       g.UpdatedAt.UTC(),
		}
		repo.db.table[key] = stored
	}

	ids := g.EvaluationIDs
	if ch == evaluation.ChannelTrial {
		ids = g.TCEvaluationIDs
	}
	stored.SetChannel(ch, g.ChannelGrade(ch), append([]string{}, ids...))
	stored.QAEvaluator = g.QAEvaluator
	stored.QAComments = g.QAComments
	stored.AverageScore = g.AverageScore
	stored.UpdatedAt = g.UpdatedAt.UTC()
	return copyGrade(stored), nil
}

func (repo *gradeRepository) DeleteGrades(_ context.Context, filter grade.GetFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.missing {
		return 0, grade.ErrTableMissing
	}

	var cnt int
	for key, g := range repo.db.table {
		if g.TeacherID != filter.TeacherID {
			continue
		}
		if (filter.Month != 0 || filter.Year != 0) && !g.IsPeriod(filter.Month, filter.Year) {
			continue
		}
		delete(repo.db.table, key)
		cnt++
	}
	return cnt, nil
}

func (repo *gradeRepository) CreateTable(_ context.Context, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.missing = false
	return nil
}
