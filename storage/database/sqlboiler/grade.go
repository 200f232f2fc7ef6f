package boiledrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/types"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
	appfs "github.com/trezcool/recqa/fs"
	"github.com/trezcool/recqa/storage/database"
)

// timestamps are rendered by postgres so that they come back as YYYY-MM-DDTHH:MI:SSZ
const gradeColumns = `id, teacher_id, grade, tc_grades, qa_evaluator, qa_comments, average_score,
	evaluation_ids, tc_evaluation_ids, month, year,
	to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"') AS created_at,
	to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"') AS updated_at`

type gradeRow struct {
	ID              string            `boil:"id"`
	TeacherID       string            `boil:"teacher_id"`
	Grade           null.Float64      `boil:"grade"`
	TCGrades        null.Float64      `boil:"tc_grades"`
	QAEvaluator     string            `boil:"qa_evaluator"`
	QAComments      string            `boil:"qa_comments"`
	AverageScore    null.Float64      `boil:"average_score"`
	EvaluationIDs   types.StringArray `boil:"evaluation_ids"`
	TCEvaluationIDs types.StringArray `boil:"tc_evaluation_ids"`
	Month           int               `boil:"month"`
	Year            int               `boil:"year"`
	CreatedAt       string            `boil:"created_at"`
	UpdatedAt       string            `boil:"updated_at"`
}

type gradeRepository struct {
	db core.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db core.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo gradeRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.db
}

func (repo gradeRepository) unboil(r *gradeRow) grade.TeacherGrade {
	if r == nil {
		return grade.TeacherGrade{}
	}
	g := grade.TeacherGrade{
		ID:              r.ID,
		TeacherID:       r.TeacherID,
		Grade:           r.Grade.Ptr(),
		TCGrades:        r.TCGrades.Ptr(),
		QAEvaluator:     r.QAEvaluator,
		QAComments:      r.QAComments,
		AverageScore:    r.AverageScore.Ptr(),
		EvaluationIDs:   []string(r.EvaluationIDs),
		TCEvaluationIDs: []string(r.TCEvaluationIDs),
		Month:           r.Month,
		Year:            r.Year,
		CreatedAt:       parseTimestamp(r.CreatedAt),
		UpdatedAt:       parseTimestamp(r.UpdatedAt),
	}
	if g.EvaluationIDs == nil {
		g.EvaluationIDs = []string{}
	}
	if g.TCEvaluationIDs == nil {
		g.TCEvaluationIDs = []string{}
	}
	return g
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// trapErr maps "no rows" to grade.ErrNotFound and "undefined table" to grade.ErrTableMissing
func (repo gradeRepository) trapErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return grade.ErrNotFound
	}
	if database.IsUndefinedTable(err) {
		return grade.ErrTableMissing
	}
	return errors.Wrap(err, msg)
}

func (repo gradeRepository) QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]grade.TeacherGrade, error) {
	var rows []*gradeRow
	q := "SELECT " + gradeColumns + " FROM teacher_grades ORDER BY updated_at DESC, id"
	if err := queries.Raw(q).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, repo.trapErr(err, "querying grades")
	}

	grades := make([]grade.TeacherGrade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, repo.unboil(r))
	}
	return grades, nil
}

func (repo gradeRepository) GetGrade(ctx context.Context, filter grade.GetFilter, exec ...core.DBExecutor) (grade.TeacherGrade, error) {
	var row gradeRow
	var q *queries.Query

	if filter.Month == 0 && filter.Year == 0 {
		q = queries.Raw(
			"SELECT "+gradeColumns+" FROM teacher_grades WHERE teacher_id = $1 "+
				"ORDER BY year DESC, month DESC, updated_at DESC LIMIT 1",
			filter.TeacherID,
		)
	} else {
		q = queries.Raw(
			"SELECT "+gradeColumns+" FROM teacher_grades WHERE teacher_id = $1 AND month = $2 AND year = $3",
			filter.TeacherID, filter.Month, filter.Year,
		)
	}

	if err := q.Bind(ctx, repo.getExec(exec), &row); err != nil {
		return grade.TeacherGrade{}, repo.trapErr(err, "finding grade")
	}
	return repo.unboil(&row), nil
}

// channelColumns returns the quoted (grade, evaluation ids) columns of a channel.
func channelColumns(ch evaluation.Channel) (string, string) {
	gradeCol, idsCol := "grade", "evaluation_ids"
	if ch == evaluation.ChannelTrial {
		gradeCol, idsCol = "tc_grades", "tc_evaluation_ids"
	}
	return strmangle.IdentQuote('"', '"', gradeCol), strmangle.IdentQuote('"', '"', idsCol)
}

// UpsertGrade runs SELECT ... FOR UPDATE, then UPDATE or INSERT, in one transaction.
// The INSERT falls back to an update when a concurrent request created the row first.
func (repo gradeRepository) UpsertGrade(ctx context.Context, g grade.TeacherGrade, ch evaluation.Channel) (grade.TeacherGrade, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return grade.TeacherGrade{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	gradeCol, idsCol := channelColumns(ch)
	chGrade := null.Float64FromPtr(g.ChannelGrade(ch))
	chIDs := g.EvaluationIDs
	if ch == evaluation.ChannelTrial {
		chIDs = g.TCEvaluationIDs
	}
	if chIDs == nil {
		chIDs = []string{}
	}
	updatedAt := g.UpdatedAt.UTC()

	var existing gradeRow
	err = queries.Raw(
		"SELECT "+gradeColumns+" FROM teacher_grades WHERE teacher_id = $1 AND month = $2 AND year = $3 FOR UPDATE",
		g.TeacherID, g.Month, g.Year,
	).Bind(ctx, tx, &existing)

	var id string
	switch {
	case err == nil:
		id = existing.ID
		q := fmt.Sprintf(
			`UPDATE teacher_grades SET %s = $1, %s = $2, qa_evaluator = $3, qa_comments = $4, average_score = $5, updated_at = $6
			WHERE id = $7`,
			gradeCol, idsCol,
		)
		if _, err = tx.ExecContext(
			ctx, q,
			chGrade, types.StringArray(chIDs), g.QAEvaluator, g.QAComments, null.Float64FromPtr(g.AverageScore), updatedAt, id,
		); err != nil {
			return grade.TeacherGrade{}, repo.trapErr(err, "updating grade")
		}

	case errors.Cause(err) == sql.ErrNoRows:
		id = uuid.New().String()
		q := fmt.Sprintf(
			`INSERT INTO teacher_grades (id, teacher_id, %s, %s, qa_evaluator, qa_comments, average_score, month, year, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			ON CONFLICT (teacher_id, month, year) DO UPDATE SET
				%s = EXCLUDED.%s, %s = EXCLUDED.%s, qa_evaluator = EXCLUDED.qa_evaluator,
				qa_comments = EXCLUDED.qa_comments, average_score = EXCLUDED.average_score, updated_at = EXCLUDED.updated_at
			RETURNING id`,
			gradeCol, idsCol, gradeCol, gradeCol, idsCol, idsCol,
		)
		if err = tx.QueryRowContext(
			ctx, q,
			id, g.TeacherID, chGrade, types.StringArray(chIDs), g.QAEvaluator, g.QAComments,
			null.Float64FromPtr(g.AverageScore), g.Month, g.Year, updatedAt,
		).Scan(&id); err != nil {
			return grade.TeacherGrade{}, repo.trapErr(err, "inserting grade")
		}

	default:
		return grade.TeacherGrade{}, repo.trapErr(err, "locking grade")
	}

	var stored gradeRow
	if err = queries.Raw("SELECT "+gradeColumns+" FROM teacher_grades WHERE id = $1", id).Bind(ctx, tx, &stored); err != nil {
		return grade.TeacherGrade{}, repo.trapErr(err, "reloading grade")
	}
	if err = tx.Commit(); err != nil {
		return grade.TeacherGrade{}, errors.Wrap(err, "committing grade")
	}
	return repo.unboil(&stored), nil
}

func (repo gradeRepository) DeleteGrades(ctx context.Context, filter grade.GetFilter, exec ...core.DBExecutor) (int, error) {
	var res sql.Result
	var err error
	exe := repo.getExec(exec)

	if filter.Month == 0 && filter.Year == 0 {
		res, err = exe.ExecContext(ctx, "DELETE FROM teacher_grades WHERE teacher_id = $1", filter.TeacherID)
	} else {
		res, err = exe.ExecContext(
			ctx, "DELETE FROM teacher_grades WHERE teacher_id = $1 AND month = $2 AND year = $3",
			filter.TeacherID, filter.Month, filter.Year,
		)
	}
	if err != nil {
		return 0, repo.trapErr(err, "deleting grades")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted grades")
	}
	return int(cnt), nil
}

func (repo gradeRepository) CreateTable(ctx context.Context, exec ...core.DBExecutor) error {
	return database.ExecScript(ctx, repo.getExec(exec), appfs.TeacherGradesTable)
}
