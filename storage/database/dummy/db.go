package dummydb

import (
	"sync"

	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
	"github.com/trezcool/recqa/core/user"
)

type (
	// DB is an in-memory store for tests and local runs without postgres.
	DB struct {
		user       *userTable
		grade      *gradeTable
		evaluation *evaluationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	gradeTable struct {
		sync.RWMutex
		table   map[string]*grade.TeacherGrade
		missing bool
	}

	evaluationTable struct {
		sync.RWMutex
		evaluations map[string]*evaluation.Evaluation
		templates   map[string]*evaluation.Template
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		grade: &gradeTable{table: make(map[string]*grade.TeacherGrade)},
		evaluation: &evaluationTable{
			evaluations: make(map[string]*evaluation.Evaluation),
			templates:   make(map[string]*evaluation.Template),
		},
	}
	return db, nil
}

// SetGradeTableMissing simulates a database without the teacher_grades table.
// CreateTable brings it back.
func (db *DB) SetGradeTableMissing(missing bool) {
	db.grade.Lock()
	defer db.grade.Unlock()
	db.grade.missing = missing
	if missing {
		db.grade.table = make(map[string]*grade.TeacherGrade)
	}
}
