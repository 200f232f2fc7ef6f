package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/storage/database"
)

const (
	evaluationColumns = "id, teacher_id, video_id, class_code, template_id, overall_score, responses, qa_evaluator, created_at"
	templateColumns   = "id, name, categories, rating_scale, created_at"
)

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

type (
	evaluationRow struct {
		ID           string           `db:"id"`
		TeacherID    string           `db:"teacher_id"`
		VideoID      string           `db:"video_id"`
		ClassCode    string           `db:"class_code"`
		TemplateID   sql.NullString   `db:"template_id"`
		OverallScore evaluation.Score `db:"overall_score"`
		Responses    types.JSONText   `db:"responses"`
		QAEvaluator  string           `db:"qa_evaluator"`
		CreatedAt    time.Time        `db:"created_at"`
	}

	templateRow struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Categories  types.JSONText `db:"categories"`
		RatingScale types.JSONText `db:"rating_scale"`
		CreatedAt   time.Time      `db:"created_at"`
	}
)

type evaluationRepository struct {
	exec core.DBExecutor
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(exec core.DBExecutor) *evaluationRepository {
	return &evaluationRepository{exec: exec}
}

func (repo evaluationRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// selectRows runs q and scans every row into dest (a pointer to a slice of structs).
func selectRows(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(&sqlx.Rows{Rows: rows, Mapper: mapper}, dest)
}

// getRow runs q and scans its single row into dest; sql.ErrNoRows when there is none.
func getRow(ctx context.Context, exec core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	r := &sqlx.Rows{Rows: rows, Mapper: mapper}
	defer func() { _ = r.Close() }()

	if !r.Next() {
		if err = r.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return r.StructScan(dest)
}

func (repo evaluationRepository) toEvaluation(r evaluationRow) (evaluation.Evaluation, error) {
	ev := evaluation.Evaluation{
		ID:           r.ID,
		TeacherID:    r.TeacherID,
		VideoID:      r.VideoID,
		ClassCode:    r.ClassCode,
		TemplateID:   r.TemplateID.String,
		OverallScore: r.OverallScore,
		QAEvaluator:  r.QAEvaluator,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if err := r.Responses.Unmarshal(&ev.Responses); err != nil {
		return evaluation.Evaluation{}, errors.Wrapf(err, "decoding responses of evaluation %s", r.ID)
	}
	if ev.Responses == nil {
		ev.Responses = evaluation.Responses{}
	}
	return ev, nil
}

func (repo evaluationRepository) toTemplate(r templateRow) (evaluation.Template, error) {
	tmpl := evaluation.Template{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if err := r.Categories.Unmarshal(&tmpl.Categories); err != nil {
		return evaluation.Template{}, errors.Wrapf(err, "decoding categories of template %s", r.ID)
	}
	if err := r.RatingScale.Unmarshal(&tmpl.RatingScale); err != nil {
		return evaluation.Template{}, errors.Wrapf(err, "decoding rating scale of template %s", r.ID)
	}
	return tmpl, nil
}

func (repo evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation, exec ...core.DBExecutor) (evaluation.Evaluation, error) {
	responses, err := json.Marshal(ev.Responses)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "encoding responses")
	}
	ev.ID = uuid.New().String()
	tmplID := sql.NullString{String: ev.TemplateID, Valid: ev.TemplateID != ""}

	_, err = repo.getExec(exec).ExecContext(
		ctx,
		"INSERT INTO evaluations ("+evaluationColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		ev.ID, ev.TeacherID, ev.VideoID, ev.ClassCode, tmplID, ev.OverallScore, types.JSONText(responses), ev.QAEvaluator, ev.CreatedAt.UTC(),
	)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	return ev, nil
}

func (repo evaluationRepository) QueryEvaluations(ctx context.Context, filter *evaluation.QueryFilter, exec ...core.DBExecutor) ([]evaluation.Evaluation, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		if filter.TeacherID != "" {
			where = append(where, "teacher_id = ?")
			args = append(args, filter.TeacherID)
		}
		if len(filter.IDs) > 0 {
			ids := make([]string, 0, len(filter.IDs))
			for _, id := range filter.IDs {
				if _, err := uuid.Parse(id); err == nil {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return []evaluation.Evaluation{}, nil
			}
			where = append(where, "id IN (?)")
			args = append(args, ids)
		}
	}

	q := "SELECT " + evaluationColumns + " FROM evaluations"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "expanding evaluation ids")
	}

	var rows []evaluationRow
	if err = selectRows(ctx, repo.getExec(exec), &rows, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}

	evals := make([]evaluation.Evaluation, 0, len(rows))
	for _, r := range rows {
		ev, err := repo.toEvaluation(r)
		if err != nil {
			return nil, err
		}
		evals = append(evals, ev)
	}
	return evals, nil
}

func (repo evaluationRepository) GetEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) (evaluation.Evaluation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}

	var r evaluationRow
	if err := getRow(ctx, repo.getExec(exec), &r, "SELECT "+evaluationColumns+" FROM evaluations WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return evaluation.Evaluation{}, evaluation.ErrNotFound
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "finding evaluation")
	}
	return repo.toEvaluation(r)
}

func (repo evaluationRepository) CreateTemplate(ctx context.Context, tmpl evaluation.Template, exec ...core.DBExecutor) (evaluation.Template, error) {
	cats, err := json.Marshal(tmpl.Categories)
	if err != nil {
		return evaluation.Template{}, errors.Wrap(err, "encoding categories")
	}
	scale, err := json.Marshal(tmpl.RatingScale)
	if err != nil {
		return evaluation.Template{}, errors.Wrap(err, "encoding rating scale")
	}
	tmpl.ID = uuid.New().String()

	_, err = repo.getExec(exec).ExecContext(
		ctx,
		"INSERT INTO evaluation_templates ("+templateColumns+") VALUES ($1, $2, $3, $4, $5)",
		tmpl.ID, tmpl.Name, types.JSONText(cats), types.JSONText(scale), tmpl.CreatedAt.UTC(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return evaluation.Template{}, evaluation.ErrTemplateExists
		}
		return evaluation.Template{}, errors.Wrap(err, "inserting template")
	}
	return tmpl, nil
}

func (repo evaluationRepository) QueryTemplates(ctx context.Context, exec ...core.DBExecutor) ([]evaluation.Template, error) {
	var rows []templateRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, "SELECT "+templateColumns+" FROM evaluation_templates ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}

	templates := make([]evaluation.Template, 0, len(rows))
	for _, r := range rows {
		tmpl, err := repo.toTemplate(r)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (repo evaluationRepository) GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (evaluation.Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return evaluation.Template{}, evaluation.ErrTemplateNotFound
	}

	var r templateRow
	if err := getRow(ctx, repo.getExec(exec), &r, "SELECT "+templateColumns+" FROM evaluation_templates WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return evaluation.Template{}, evaluation.ErrTemplateNotFound
		}
		return evaluation.Template{}, errors.Wrap(err, "finding template")
	}
	return repo.toTemplate(r)
}
