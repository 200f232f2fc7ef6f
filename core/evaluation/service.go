package evaluation

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
)

var (
	// errors
	ErrNotFound           = errors.New("evaluation not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrTemplateExists     = errors.New("a template with this name already exists")
	ErrTemplateUnresolved = errors.New("no template matches this class code")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrInvalidWeights     = errors.New("subcategory weights must sum to 100")
	ErrDuplicateCategory  = errors.New("duplicate category")
	ErrInvalidResponses   = errors.New("invalid responses")
)

type (
	Repository interface {
		CreateEvaluation(ctx context.Context, ev Evaluation, exec ...core.DBExecutor) (Evaluation, error)
		// QueryEvaluations returns the evaluations matching filter.TeacherID and filter.IDs, newest first.
		// Period and channel filtering is left to the caller.
		QueryEvaluations(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Evaluation, error)
		GetEvaluation(ctx context.Context, id string, exec ...core.DBExecutor) (Evaluation, error)

		CreateTemplate(ctx context.Context, tmpl Template, exec ...core.DBExecutor) (Template, error)
		QueryTemplates(ctx context.Context, exec ...core.DBExecutor) ([]Template, error)
		GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (Template, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, ne NewEvaluation) (Evaluation, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Evaluation, error)
		Get(ctx context.Context, id string) (Evaluation, error)
		Summary(ctx context.Context, filter *QueryFilter) (Summary, error)

		CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error)
		Templates(ctx context.Context) ([]Template, error)
		Template(ctx context.Context, id string) (Template, error)
		ResolveTemplate(ctx context.Context, classCode string) (Resolution, error)
	}

	Service struct {
		repo Repository
		now  core.NowFunc
	}

	// Resolution is the outcome of resolving a class code.
	Resolution struct {
		ClassCode  string  `json:"class_code"`
		Prefix     string  `json:"prefix"`
		Valid      bool    `json:"valid"`
		Channel    Channel `json:"channel"`
		TemplateID *string `json:"template_id"`
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: core.UTCNow}
}

// SetClock replaces the clock used to compute period windows.
func (svc *Service) SetClock(now core.NowFunc) {
	svc.now = now
}

// Create records an evaluation. The template is resolved from the class code
// when TemplateID is empty and the overall score is computed from the responses.
func (svc *Service) Create(ctx context.Context, ne NewEvaluation) (Evaluation, error) {
	if !ValidateClassCode(ne.ClassCode) {
		return Evaluation{}, core.NewValidationError(nil, core.FieldError{Field: "class_code", Error: classCodeText})
	}

	tmplID := ne.TemplateID
	if tmplID == "" {
		res, err := svc.ResolveTemplate(ctx, ne.ClassCode)
		if err != nil {
			return Evaluation{}, pkgerrors.Wrap(err, "resolving template")
		}
		if res.TemplateID == nil {
			return Evaluation{}, core.NewValidationError(
				ErrTemplateUnresolved,
				core.FieldError{Field: "template_id", Error: ErrTemplateUnresolved.Error()},
			)
		}
		tmplID = *res.TemplateID
	}

	tmpl, err := svc.repo.GetTemplate(ctx, tmplID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTemplateNotFound {
			return Evaluation{}, core.NewValidationError(err, core.FieldError{Field: "template_id", Error: err.Error()})
		}
		return Evaluation{}, pkgerrors.Wrap(err, "finding template")
	}

	score, err := ComputeOverallScore(tmpl, ne.Responses)
	if err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{
		TeacherID:    ne.TeacherID,
		VideoID:      ne.VideoID,
		ClassCode:    ne.ClassCode,
		TemplateID:   tmpl.ID,
		OverallScore: score,
		Responses:    ne.Responses,
		QAEvaluator:  ne.QAEvaluator,
		CreatedAt:    svc.now().UTC(),
	}
	return svc.repo.CreateEvaluation(ctx, ev)
}

// Query returns the evaluations matching the filter, narrowed to its period and channel.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Evaluation, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	period, err := ParsePeriod(filter.Period)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "period", Error: periodText})
	}
	var channel Channel
	if filter.Channel != "" {
		if channel, err = ParseChannel(filter.Channel); err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "channel", Error: channelText})
		}
	}

	evals, err := svc.repo.QueryEvaluations(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying evaluations")
	}
	evals = FilterByPeriod(evals, period, svc.now())
	if channel != "" {
		evals = filterByChannel(evals, channel)
	}
	return evals, nil
}

func filterByChannel(evals []Evaluation, ch Channel) []Evaluation {
	filtered := make([]Evaluation, 0, len(evals))
	for _, ev := range evals {
		if ev.Channel() == ch {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func (svc *Service) Get(ctx context.Context, id string) (Evaluation, error) {
	return svc.repo.GetEvaluation(ctx, id)
}

// Summary aggregates the evaluations matching the filter over its period.
func (svc *Service) Summary(ctx context.Context, filter *QueryFilter) (Summary, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	evals, err := svc.Query(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	period, _ := ParsePeriod(filter.Period)

	// Query already applied the window.
	sum := Summarize(evals, PeriodAll, time.Time{})
	sum.Period = period
	sum.TeacherID = filter.TeacherID
	if filter.Channel != "" {
		sum.Channel, _ = ParseChannel(filter.Channel)
	}
	return sum, nil
}

func (svc *Service) CreateTemplate(ctx context.Context, nt NewTemplate) (Template, error) {
	if err := checkCategories(nt.Categories); err != nil {
		return Template{}, err
	}
	tmpl := Template{
		Name:        nt.Name,
		Categories:  nt.Categories,
		RatingScale: nt.RatingScale,
		CreatedAt:   svc.now().UTC(),
	}
	tmpl, err := svc.repo.CreateTemplate(ctx, tmpl)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTemplateExists {
			return Template{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Template{}, pkgerrors.Wrap(err, "creating template")
	}
	return tmpl, nil
}

func (svc *Service) Templates(ctx context.Context) ([]Template, error) {
	return svc.repo.QueryTemplates(ctx)
}

func (svc *Service) Template(ctx context.Context, id string) (Template, error) {
	return svc.repo.GetTemplate(ctx, id)
}

// ResolveTemplate validates the class code and picks its template.
// Templates are read from the store on every call.
func (svc *Service) ResolveTemplate(ctx context.Context, classCode string) (Resolution, error) {
	classCode = core.CleanString(classCode)
	res := Resolution{
		ClassCode: classCode,
		Prefix:    ClassCodePrefix(classCode),
		Valid:     ValidateClassCode(classCode),
		Channel:   ChannelForClassCode(classCode),
	}
	if _, ok := TemplateMarker(classCode); !ok {
		return res, nil
	}

	templates, err := svc.repo.QueryTemplates(ctx)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(err, "querying templates")
	}
	if id, ok := GetTemplateIDForClassCode(classCode, templates); ok {
		res.TemplateID = &id
	}
	return res, nil
}
