package echoapi_test

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/recqa/core/evaluation"
	testutil "github.com/trezcool/recqa/tests"
)

func Test_evaluationApi_create(t *testing.T) {
	env := setup(t)
	qaToken := env.token(t, env.qa)
	tmpl := testutil.CreateTemplate(t, env.evalRepo, "Rubric INFORMAL SCHOOLING", "Delivery", "Engagement")

	newEval := func(code string, delivery, engagement float64) []byte {
		return marshalObj(t, evaluation.NewEvaluation{
			TeacherID: "T.Jane@x.com",
			VideoID:   "vid-42",
			ClassCode: code,
			Responses: evaluation.Responses{
				"Delivery":   {{Subcategory: "Delivery overall", Score: delivery}},
				"Engagement": {{Subcategory: "Engagement overall", Score: engagement, Comment: "lively"}},
			},
		})
	}

	env.run(t, []httpTest{
		{name: "qa required", method: http.MethodPost, path: "/api/evaluations", body: newEval("ng_240315_1000AM_Jane", 4, 5), token: env.token(t, env.teacher), wantCode: http.StatusForbidden},
		{
			name: "bad class code", method: http.MethodPost, path: "/api/evaluations", body: newEval("NG 15/03", 4, 5), token: qaToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"class_code": "invalid class code format (expected e.g. ps_070424_1000AM_Apple)"}),
		},
		{
			name: "no template", method: http.MethodPost, path: "/api/evaluations", body: newEval("kg_240315_1000AM_Jane", 4, 5), token: qaToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"template_id": evaluation.ErrTemplateUnresolved.Error()}),
		},
	})

	rec := env.do(http.MethodPost, "/api/evaluations", qaToken, newEval("ng_240315_1000AM_Jane", 4, 5))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev evaluation.Evaluation
	unmarshal(t, rec, &ev)
	assert.Equal(t, "t.jane@x.com", ev.TeacherID)
	assert.Equal(t, tmpl.ID, ev.TemplateID)
	assert.Equal(t, evaluation.NewScore(4.5), ev.OverallScore)
	assert.Equal(t, "qa@x.com", ev.QAEvaluator)
	assert.Equal(t, now, ev.CreatedAt)

	rec = env.do(http.MethodGet, "/api/evaluations/"+ev.ID, env.token(t, env.teacher))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, "/api/evaluations/unknown", qaToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error": "evaluation not found"}`, rec.Body.String())
}

func Test_evaluationApi_query(t *testing.T) {
	env := setup(t)
	qaToken := env.token(t, env.qa)

	mar := testutil.CreateEvaluation(t, env.evalRepo, "t.jane@x.com", "ng_240310_1000AM_Jane", "4", now.AddDate(0, 0, -5))
	feb := testutil.CreateEvaluation(t, env.evalRepo, "t.jane@x.com", "ng_240210_1000AM_Jane", "3", now.AddDate(0, -1, -5))
	john := testutil.CreateEvaluation(t, env.evalRepo, "t.john@x.com", "ng_240311_1000AM_John", "5", now.AddDate(0, 0, -4))

	env.run(t, []httpTest{
		{name: "all", path: "/api/evaluations", token: qaToken, wantCode: http.StatusOK, wantData: marshalObj(t, []evaluation.Evaluation{john, mar, feb})},
		{
			name: "teacher and period", path: "/api/evaluations?teacher_id=t.jane@x.com&period=current_month", token: qaToken,
			wantCode: http.StatusOK, wantData: marshalObj(t, []evaluation.Evaluation{mar}),
		},
		{
			name: "previous month", path: "/api/evaluations?period=previous_month", token: qaToken,
			wantCode: http.StatusOK, wantData: marshalObj(t, []evaluation.Evaluation{feb}),
		},
		{
			name: "teachers see their own", path: "/api/evaluations?teacher_id=t.john@x.com", token: env.token(t, env.teacher),
			wantCode: http.StatusOK, wantData: marshalObj(t, []evaluation.Evaluation{mar, feb}),
		},
		{
			name: "bad period", path: "/api/evaluations?period=yesterday", token: qaToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"period": "must be one of current_month, previous_month, last_3_months, last_6_months or all"}),
		},
		{name: "someone else's evaluation", path: "/api/evaluations/" + john.ID, token: env.token(t, env.teacher), wantCode: http.StatusNotFound},
		{
			name: "empty summary", path: "/api/evaluations/summary?teacher_id=nobody@x.com", token: qaToken, wantCode: http.StatusOK,
			wantData: []byte(`{"teacher_id": "nobody@x.com", "period": "all", "count": 0, "average_score": "N/A", "evaluation_ids": []}`),
		},
	})
}

func Test_evaluationApi_export(t *testing.T) {
	env := setup(t)
	qaToken := env.token(t, env.qa)
	testutil.CreateTemplate(t, env.evalRepo, "TRIAL CLASS", "Delivery")
	ev1 := testutil.CreateEvaluation(t, env.evalRepo, "t.jane@x.com", "ng_240310_1000AM_Jane", "4", now.AddDate(0, 0, -5))
	ev2 := testutil.CreateEvaluation(t, env.evalRepo, "t.jane@x.com", "ng_240311_1000AM_Jane", "4.5", now.AddDate(0, 0, -4))
	testutil.CreateEvaluation(t, env.evalRepo, "t.jane@x.com", "ng_240312_1000AM_Jane", "1", now.AddDate(0, 0, -3))

	t.Run("html", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/evaluations/export?id="+ev1.ID+"&id="+ev2.ID, qaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="evaluations_`)
		body := rec.Body.String()
		assert.Contains(t, body, "ng_240310_1000AM_Jane")
		assert.Contains(t, body, "ng_240311_1000AM_Jane")
		assert.NotContains(t, body, "ng_240312_1000AM_Jane")
		assert.Contains(t, body, "4.25")
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/evaluations/export?format=xlsx&teacher_id=t.jane@x.com", qaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Evaluations")
		require.NoError(t, err)
		// title, header, 3 evaluations, average
		assert.Len(t, rows, 6)
	})

	env.run(t, []httpTest{
		{
			name: "bad format", path: "/api/evaluations/export?format=pdf&id=" + ev1.ID, token: qaToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"format": "format must be one of html, xlsx"}),
		},
		{
			name: "no selection", path: "/api/evaluations/export", token: qaToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"id": "select evaluations by id or teacher_id"}),
		},
		{name: "qa required", path: "/api/evaluations/export?id=" + ev1.ID, token: env.token(t, env.teacher), wantCode: http.StatusForbidden},
	})
}

func Test_templateApi(t *testing.T) {
	env := setup(t)
	adminToken := env.token(t, env.admin)
	qaToken := env.token(t, env.qa)

	newTmpl := func(name string, weights ...float64) []byte {
		nt := evaluation.NewTemplate{Name: name}
		for i, w := range weights {
			name := string(rune('A' + i))
			nt.Categories = append(nt.Categories, evaluation.Category{
				Name:          "Category " + name,
				Subcategories: []evaluation.Subcategory{{Name: "Sub " + name, Weight: w}},
			})
		}
		return marshalObj(t, nt)
	}

	rec := env.do(http.MethodPost, "/api/templates", adminToken, newTmpl("FORMAL SCHOOLING", 60, 40))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var formal evaluation.Template
	unmarshal(t, rec, &formal)
	assert.Equal(t, evaluation.RatingScale{Min: 1, Max: 5}, formal.RatingScale)

	env.run(t, []httpTest{
		{name: "admin required", method: http.MethodPost, path: "/api/templates", body: newTmpl("X", 100), token: qaToken, wantCode: http.StatusForbidden},
		{
			name: "weights", method: http.MethodPost, path: "/api/templates", body: newTmpl("Uneven", 60, 30), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"categories": "subcategory weights must sum to 100 (got 90)"}),
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/api/templates", body: newTmpl("FORMAL SCHOOLING", 100), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"name": evaluation.ErrTemplateExists.Error()}),
		},
		{name: "list", path: "/api/templates", token: qaToken, wantCode: http.StatusOK, wantData: marshalObj(t, []evaluation.Template{formal})},
		{name: "retrieve", path: "/api/templates/" + formal.ID, token: qaToken, wantCode: http.StatusOK, wantData: marshalObj(t, formal)},
		{
			name: "resolve", path: "/api/templates/resolve?class_code=kg_240315_1000AM_Jane", token: qaToken, wantCode: http.StatusOK,
			wantData: marshalObj(t, evaluation.Resolution{
				ClassCode: "kg_240315_1000AM_Jane", Prefix: "kg", Valid: true, Channel: evaluation.ChannelRegular, TemplateID: &formal.ID,
			}),
		},
		{
			name: "resolve informal", path: "/api/templates/resolve?class_code=ng_240315_1000AM_Jane", token: qaToken, wantCode: http.StatusOK,
			wantData: []byte(`{"class_code": "ng_240315_1000AM_Jane", "prefix": "ng", "valid": true, "channel": "regular", "template_id": null}`),
		},
		{
			name: "valid class code", path: "/api/class-codes/validate?code=f1_free_070424_1000AM_J.Doe", token: qaToken, wantCode: http.StatusOK,
			wantData: []byte(`{"code": "f1_free_070424_1000AM_J.Doe", "valid": true, "channel": "trial"}`),
		},
		{
			name: "invalid class code", path: "/api/class-codes/validate?code=hello", token: qaToken, wantCode: http.StatusOK,
			wantData: []byte(`{"code": "hello", "valid": false, "channel": "regular"}`),
		},
	})
}
