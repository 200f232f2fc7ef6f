package evaluation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
)

// Response is the score given to one subcategory of a template.
type Response struct {
	Subcategory string  `json:"subcategory" validate:"notblank"`
	Score       float64 `json:"score"`
	Comment     string  `json:"comment,omitempty"`
}

// Responses maps a category name to the responses of its subcategories.
type Responses map[string][]Response

type Evaluation struct {
	ID           string    `json:"id"`
	TeacherID    string    `json:"teacher_id"`
	VideoID      string    `json:"video_id"`
	ClassCode    string    `json:"class_code"`
	TemplateID   string    `json:"template_id"`
	OverallScore Score     `json:"overall_score"`
	Responses    Responses `json:"responses"`
	QAEvaluator  string    `json:"qa_evaluator"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

func (ev Evaluation) Channel() Channel {
	return ChannelForClassCode(ev.ClassCode)
}

// NewEvaluation contains information needed to record an evaluation.
// TemplateID may be left empty to resolve it from the class code.
type NewEvaluation struct {
	TeacherID   string    `json:"teacher_id" validate:"notblank"`
	VideoID     string    `json:"video_id" validate:"notblank"`
	ClassCode   string    `json:"class_code" validate:"classcode"`
	TemplateID  string    `json:"template_id" validate:"omitempty,uuid"`
	Responses   Responses `json:"responses" validate:"required,min=1,dive,keys,notblank,endkeys,min=1,dive"`
	QAEvaluator string    `json:"qa_evaluator" validate:"notblank"`
}

func (ne *NewEvaluation) Validate(validate *validator.Validate) error {
	ne.TeacherID = core.CleanString(ne.TeacherID, true /* lower */)
	ne.VideoID = core.CleanString(ne.VideoID)
	ne.ClassCode = core.CleanString(ne.ClassCode)
	ne.TemplateID = core.CleanString(ne.TemplateID)
	ne.QAEvaluator = core.CleanString(ne.QAEvaluator, true /* lower */)
	return validate.Struct(ne)
}

type QueryFilter struct {
	TeacherID string   `query:"teacher_id"`
	Period    string   `query:"period"`
	Channel   string   `query:"channel"`
	IDs       []string `query:"id"`
}

func (qf *QueryFilter) Clean() {
	qf.TeacherID = core.CleanString(qf.TeacherID, true /* lower */)
	qf.Period = core.CleanString(qf.Period, true /* lower */)
	qf.Channel = core.CleanString(qf.Channel, true /* lower */)
	qf.IDs = core.CleanStrings(qf.IDs)
}

// Summary is the aggregate of a teacher's evaluations over a period.
type Summary struct {
	TeacherID     string   `json:"teacher_id,omitempty"`
	Period        Period   `json:"period"`
	Channel       Channel  `json:"channel,omitempty"`
	Count         int      `json:"count"`
	AverageScore  Score    `json:"average_score"`
	EvaluationIDs []string `json:"evaluation_ids"`
}

// Summarize filters evals by period and averages what is left.
func Summarize(evals []Evaluation, period Period, now time.Time) Summary {
	filtered := FilterByPeriod(evals, period, now)
	ids := make([]string, 0, len(filtered))
	for _, ev := range filtered {
		ids = append(ids, ev.ID)
	}
	return Summary{
		Period:        period,
		Count:         len(filtered),
		AverageScore:  AverageScore(filtered),
		EvaluationIDs: ids,
	}
}

// Template is an evaluation rubric.
type (
	Template struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Categories  []Category  `json:"categories"`
		RatingScale RatingScale `json:"rating_scale"`
		CreatedAt   time.Time   `json:"created_at"` // UTC
	}

	Category struct {
		Name          string        `json:"name" validate:"notblank"`
		Subcategories []Subcategory `json:"subcategories" validate:"required,min=1,dive"`
	}

	Subcategory struct {
		Name   string  `json:"name" validate:"notblank"`
		Weight float64 `json:"weight" validate:"gt=0,lte=100"`
	}

	RatingScale struct {
		Min           float64           `json:"min" validate:"gte=0"`
		Max           float64           `json:"max" validate:"gtfield=Min"`
		AllowDecimals bool              `json:"allow_decimals"`
		Labels        map[string]string `json:"labels,omitempty"`
	}
)

const weightsTotal = 100.0

// TotalWeight sums the weights of every subcategory.
func (t Template) TotalWeight() float64 {
	var total float64
	for _, cat := range t.Categories {
		for _, sub := range cat.Subcategories {
			total += sub.Weight
		}
	}
	return total
}

func (t Template) category(name string) (Category, bool) {
	for _, cat := range t.Categories {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return Category{}, false
}

// NewTemplate contains information needed to create a Template.
type NewTemplate struct {
	Name        string      `json:"name" validate:"notblank,max=200"`
	Categories  []Category  `json:"categories" validate:"required,min=1,dive"`
	RatingScale RatingScale `json:"rating_scale"`
}

func (nt *NewTemplate) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	for i := range nt.Categories {
		nt.Categories[i].Name = core.CleanString(nt.Categories[i].Name)
		for j := range nt.Categories[i].Subcategories {
			nt.Categories[i].Subcategories[j].Name = core.CleanString(nt.Categories[i].Subcategories[j].Name)
		}
	}
	if nt.RatingScale.Max == 0 && nt.RatingScale.Min == 0 {
		nt.RatingScale.Min, nt.RatingScale.Max = MinScore, MaxScore
	}

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return checkCategories(nt.Categories)
}

func checkCategories(cats []Category) error {
	seen := make(map[string]bool, len(cats))
	for _, cat := range cats {
		key := strings.ToLower(cat.Name)
		if seen[key] {
			return core.NewValidationError(
				ErrDuplicateCategory,
				core.FieldError{Field: "categories", Error: fmt.Sprintf("duplicate category %q", cat.Name)},
			)
		}
		seen[key] = true
	}

	total := Template{Categories: cats}.TotalWeight()
	if math.Abs(total-weightsTotal) > 1e-6 {
		return core.NewValidationError(
			ErrInvalidWeights,
			core.FieldError{Field: "categories", Error: fmt.Sprintf("%s (got %g)", ErrInvalidWeights, total)},
		)
	}
	return nil
}

// ComputeOverallScore scores responses against a template:
// the weighted sum of the subcategory scores divided by the total weight, rounded to 2 decimals.
// Every subcategory needs a response within the template's rating scale.
func ComputeOverallScore(tmpl Template, responses Responses) (Score, error) {
	fail := func(format string, args ...interface{}) (Score, error) {
		msg := fmt.Sprintf(format, args...)
		return Score{}, core.NewValidationError(
			errors.Wrap(ErrInvalidResponses, msg),
			core.FieldError{Field: "responses", Error: msg},
		)
	}

	for catName := range responses {
		if _, ok := tmpl.category(catName); !ok {
			return fail("unknown category %q", catName)
		}
	}

	scale := tmpl.RatingScale
	var weighted, totalWeight float64
	for _, cat := range tmpl.Categories {
		var catResponses []Response
		for name, rs := range responses {
			if strings.EqualFold(name, cat.Name) {
				catResponses = rs
				break
			}
		}

		for _, sub := range cat.Subcategories {
			resp, ok := findResponse(catResponses, sub.Name)
			if !ok {
				return fail("missing score for %s / %s", cat.Name, sub.Name)
			}
			if math.IsNaN(resp.Score) || resp.Score < scale.Min || resp.Score > scale.Max {
				return fail("score for %s / %s must be between %g and %g", cat.Name, sub.Name, scale.Min, scale.Max)
			}
			if !scale.AllowDecimals && resp.Score != math.Trunc(resp.Score) {
				return fail("score for %s / %s must be a whole number", cat.Name, sub.Name)
			}
			weighted += resp.Score * sub.Weight
			totalWeight += sub.Weight
		}

		for _, resp := range catResponses {
			if !hasSubcategory(cat, resp.Subcategory) {
				return fail("unknown subcategory %s / %s", cat.Name, resp.Subcategory)
			}
		}
	}

	if totalWeight == 0 {
		return Score{}, nil
	}
	return NewScore(core.Round2(weighted / totalWeight)), nil
}

func findResponse(rs []Response, subcategory string) (Response, bool) {
	for _, r := range rs {
		if strings.EqualFold(strings.TrimSpace(r.Subcategory), subcategory) {
			return r, true
		}
	}
	return Response{}, false
}

func hasSubcategory(cat Category, name string) bool {
	for _, sub := range cat.Subcategories {
		if strings.EqualFold(sub.Name, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
