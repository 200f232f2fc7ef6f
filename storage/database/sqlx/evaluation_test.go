package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/recqa/core/evaluation"
	sqlxrepos "github.com/trezcool/recqa/storage/database/sqlx"
	testutil "github.com/trezcool/recqa/tests"
)

func TestEvaluationRepository_evaluations(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewEvaluationRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	e1 := testutil.CreateEvaluation(t, repo, "t.jane@x.com", "ng_010324_0900AM_Jane", "4.0", base)
	e2 := testutil.CreateEvaluation(t, repo, "t.jane@x.com", "ng_020324_0900AM_Jane", "", base.Add(24*time.Hour))
	e3 := testutil.CreateEvaluation(t, repo, "t.john@x.com", "kg_020324_0900AM_John", "3.5", base.Add(48*time.Hour))

	t.Run("by teacher, newest first", func(t *testing.T) {
		evals, err := repo.QueryEvaluations(ctx, &evaluation.QueryFilter{TeacherID: "t.jane@x.com"})
		require.NoError(t, err)
		require.Len(t, evals, 2)
		assert.Equal(t, e2.ID, evals[0].ID)
		assert.Equal(t, e1.ID, evals[1].ID)
		assert.False(t, evals[0].OverallScore.Valid)
		assert.Equal(t, evaluation.NewScore(4), evals[1].OverallScore)
	})

	t.Run("by ids", func(t *testing.T) {
		evals, err := repo.QueryEvaluations(ctx, &evaluation.QueryFilter{IDs: []string{e1.ID, e3.ID, "bogus"}})
		require.NoError(t, err)
		assert.Len(t, evals, 2)

		evals, err = repo.QueryEvaluations(ctx, &evaluation.QueryFilter{IDs: []string{"bogus"}})
		require.NoError(t, err)
		assert.Empty(t, evals)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetEvaluation(ctx, e3.ID)
		require.NoError(t, err)
		assert.Equal(t, "kg_020324_0900AM_John", got.ClassCode)
		assert.True(t, got.CreatedAt.Equal(e3.CreatedAt))

		_, err = repo.GetEvaluation(ctx, "bogus")
		assert.Equal(t, evaluation.ErrNotFound, err)
	})
}

func TestEvaluationRepository_templates(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewEvaluationRepository(db)
	ctx := context.Background()

	formal := testutil.CreateTemplate(t, repo, "FORMAL SCHOOLING", "Delivery", "Engagement")
	testutil.CreateTemplate(t, repo, "INFORMAL SCHOOLING")

	_, err := repo.CreateTemplate(ctx, evaluation.Template{Name: "FORMAL SCHOOLING", CreatedAt: time.Now()})
	assert.Equal(t, evaluation.ErrTemplateExists, err)

	templates, err := repo.QueryTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "FORMAL SCHOOLING", templates[0].Name)

	got, err := repo.GetTemplate(ctx, formal.ID)
	require.NoError(t, err)
	assert.Equal(t, formal.Categories, got.Categories)
	assert.Equal(t, 100.0, got.TotalWeight())

	_, err = repo.GetTemplate(ctx, "bogus")
	assert.Equal(t, evaluation.ErrTemplateNotFound, err)
}
