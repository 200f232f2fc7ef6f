package grade

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
)

const (
	MinGrade = 0.0
	MaxGrade = 5.0

	MinYear = 1970
	MaxYear = 9999
)

// TeacherGrade is a teacher's grade for one month. Both grading channels share the row.
type TeacherGrade struct {
	ID              string    `json:"id"`
	TeacherID       string    `json:"teacher_id"`
	Grade           *float64  `json:"grade"`
	TCGrades        *float64  `json:"tc_grades"`
	QAEvaluator     string    `json:"qa_evaluator"`
	QAComments      string    `json:"qa_comments"`
	AverageScore    *float64  `json:"average_score"`
	EvaluationIDs   []string  `json:"evaluation_ids"`
	TCEvaluationIDs []string  `json:"tc_evaluation_ids"`
	Month           int       `json:"month"`
	Year            int       `json:"year"`
	CreatedAt       time.Time `json:"created_at"` // UTC, second precision
	UpdatedAt       time.Time `json:"updated_at"` // UTC, second precision
}

// ChannelGrade returns the grade stored for the channel, nil while ungraded.
func (g TeacherGrade) ChannelGrade(ch evaluation.Channel) *float64 {
	if ch == evaluation.ChannelTrial {
		return g.TCGrades
	}
	return g.Grade
}

// SetChannel sets the grade and contributing evaluations of one channel.
func (g *TeacherGrade) SetChannel(ch evaluation.Channel, grade *float64, evalIDs []string) {
	if evalIDs == nil {
		evalIDs = []string{}
	}
	if ch == evaluation.ChannelTrial {
		g.TCGrades = grade
		g.TCEvaluationIDs = evalIDs
		return
	}
	g.Grade = grade
	g.EvaluationIDs = evalIDs
}

func (g TeacherGrade) IsPeriod(month, year int) bool {
	return g.Month == month && g.Year == year
}

// CanEvaluate reports whether the channel can be graded for now's month.
// It is false only when stored is for now's month and year and the channel already holds a grade.
func CanEvaluate(stored *TeacherGrade, ch evaluation.Channel, now time.Time) bool {
	if stored == nil {
		return true
	}
	if !stored.IsPeriod(int(now.Month()), now.Year()) {
		return true
	}
	return stored.ChannelGrade(ch) == nil
}

// NewGrade contains information needed to submit a grade.
// Month and Year default to the current period.
type NewGrade struct {
	TeacherID     string           `json:"teacher_id" validate:"notblank,max=320"`
	Grade         *float64         `json:"grade" validate:"required,gte=0,lte=5"`
	QAEvaluator   string           `json:"qa_evaluator" validate:"notblank,max=320"`
	QAComments    string           `json:"qa_comments" validate:"max=5000"`
	AverageScore  evaluation.Score `json:"average_score" validate:"omitempty,gte=0,lte=5"`
	EvaluationIDs []string         `json:"evaluation_ids" validate:"omitempty,dive,notblank"`
	Month         int              `json:"month" validate:"omitempty,min=1,max=12"`
	Year          int              `json:"year" validate:"omitempty,min=1970,max=9999"`
	Channel       string           `json:"channel" validate:"omitempty,channel"`
}

func (ng *NewGrade) Clean() {
	ng.TeacherID = core.CleanString(ng.TeacherID, true /* lower */)
	ng.QAEvaluator = core.CleanString(ng.QAEvaluator, true /* lower */)
	ng.QAComments = core.CleanString(ng.QAComments)
	ng.EvaluationIDs = core.CleanStrings(ng.EvaluationIDs)
	ng.Channel = core.CleanString(ng.Channel, true /* lower */)
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Clean()
	return validate.Struct(ng)
}

// check enforces the submission preconditions without a validator.
func (ng *NewGrade) check() error {
	var flds []core.FieldError
	if ng.TeacherID == "" {
		flds = append(flds, core.FieldError{Field: "teacher_id", Error: "this field is required"})
	}
	switch {
	case ng.Grade == nil:
		flds = append(flds, core.FieldError{Field: "grade", Error: "this field is required"})
	case !validGrade(*ng.Grade):
		flds = append(flds, core.FieldError{Field: "grade", Error: ErrInvalidGrade.Error()})
	}
	if ng.QAEvaluator == "" {
		flds = append(flds, core.FieldError{Field: "qa_evaluator", Error: "this field is required"})
	}
	if avg := ng.AverageScore; avg.Valid && !validGrade(avg.Float64) {
		flds = append(flds, core.FieldError{Field: "average_score", Error: "average score must be a number between 0 and 5"})
	}
	if ng.Month != 0 && (ng.Month < 1 || ng.Month > 12) {
		flds = append(flds, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	if ng.Year != 0 && (ng.Year < MinYear || ng.Year > MaxYear) {
		flds = append(flds, core.FieldError{Field: "year", Error: fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear)})
	}
	if _, err := evaluation.ParseChannel(ng.Channel); err != nil {
		flds = append(flds, core.FieldError{Field: "channel", Error: err.Error()})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func validGrade(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinGrade && v <= MaxGrade
}

// GetFilter selects one teacher's grades. Zero Month and Year mean the latest period.
type GetFilter struct {
	TeacherID string
	Month     int `query:"month"`
	Year      int `query:"year"`
}

// Eligibility tells whether a teacher can be graded this month on a channel.
type Eligibility struct {
	TeacherID   string             `json:"teacher_id"`
	Channel     evaluation.Channel `json:"channel"`
	Month       int                `json:"month"`
	Year        int                `json:"year"`
	CanEvaluate bool               `json:"can_evaluate"`
	Grade       *TeacherGrade      `json:"grade,omitempty"`
}
