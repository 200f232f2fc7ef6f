package grade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
)

func f64(v float64) *float64 { return &v }

func TestCanEvaluate(t *testing.T) {
	march := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
	april := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

	graded := &TeacherGrade{TeacherID: "t.jane@x.com", Grade: f64(4.25), Month: 3, Year: 2024}
	lastYear := &TeacherGrade{TeacherID: "t.jane@x.com", Grade: f64(4), Month: 3, Year: 2023}

	tests := []struct {
		name   string
		stored *TeacherGrade
		ch     evaluation.Channel
		now    time.Time
		want   bool
	}{
		{name: "nothing stored", stored: nil, ch: evaluation.ChannelRegular, now: march, want: true},
		{name: "graded this month", stored: graded, ch: evaluation.ChannelRegular, now: march, want: false},
		{name: "other channel still open", stored: graded, ch: evaluation.ChannelTrial, now: march, want: true},
		{name: "month rolled over", stored: graded, ch: evaluation.ChannelRegular, now: april, want: true},
		{name: "same month last year", stored: lastYear, ch: evaluation.ChannelRegular, now: march, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanEvaluate(tt.stored, tt.ch, tt.now))
		})
	}
}

func TestTeacherGrade_SetChannel(t *testing.T) {
	var g TeacherGrade
	g.SetChannel(evaluation.ChannelTrial, f64(3.5), nil)
	g.SetChannel(evaluation.ChannelRegular, f64(4), []string{"a", "b"})

	assert.Equal(t, f64(3.5), g.ChannelGrade(evaluation.ChannelTrial))
	assert.Equal(t, f64(4), g.ChannelGrade(evaluation.ChannelRegular))
	assert.Equal(t, []string{}, g.TCEvaluationIDs)
	assert.Equal(t, []string{"a", "b"}, g.EvaluationIDs)
}

func TestNewGrade_check(t *testing.T) {
	tests := []struct {
		name       string
		ng         NewGrade
		wantFields []string
	}{
		{name: "valid", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(0), QAEvaluator: "qa@x.com"}},
		{name: "missing everything", ng: NewGrade{}, wantFields: []string{"teacher_id", "grade", "qa_evaluator"}},
		{name: "grade above 5", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(5.01), QAEvaluator: "qa"}, wantFields: []string{"grade"}},
		{name: "negative grade", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(-1), QAEvaluator: "qa"}, wantFields: []string{"grade"}},
		{name: "bad month", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", Month: 13}, wantFields: []string{"month"}},
		{name: "bad channel", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", Channel: "vip"}, wantFields: []string{"channel"}},
		{name: "average above 5", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", AverageScore: evaluation.NewScore(42.5)}, wantFields: []string{"average_score"}},
		{name: "negative average", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", AverageScore: evaluation.NewScore(-3)}, wantFields: []string{"average_score"}},
		{name: "average n/a", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", AverageScore: evaluation.Score{}}},
		{name: "average in range", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", AverageScore: evaluation.NewScore(4.25)}},
		{name: "year too small", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", Year: 5}, wantFields: []string{"year"}},
		{name: "year too large", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", Year: 10000}, wantFields: []string{"year"}},
		{name: "year in range", ng: NewGrade{TeacherID: "t@x.com", Grade: f64(3), QAEvaluator: "qa", Month: 3, Year: 2024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ng.check()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			verr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("check() error = %v, want a *core.ValidationError", err)
			}
			var got []string
			for _, fe := range verr.Fields {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}
