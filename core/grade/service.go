package grade

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
)

var (
	// errors
	ErrNotFound     = errors.New("teacher grade not found")
	ErrTableMissing = errors.New("teacher_grades table does not exist")
	ErrInvalidGrade = errors.New("grade must be a number between 0 and 5")
)

// TxError is a grade write that failed and was rolled back. Grade is the row that was being written.
type TxError struct {
	Err   error
	Grade TeacherGrade
}

func (e *TxError) Error() string {
	return "grade transaction failed: " + e.Err.Error()
}

func (e *TxError) Unwrap() error { return e.Err }

type (
	Repository interface {
		// QueryGrades returns every grade, most recently updated first.
		QueryGrades(ctx context.Context, exec ...core.DBExecutor) ([]TeacherGrade, error)
		// GetGrade returns the grade of filter's period, or the latest one when the period is zero.
		GetGrade(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (TeacherGrade, error)
		// UpsertGrade inserts the grade or updates the channel's values of the (teacher, month, year) row,
		// inside one transaction.
		UpsertGrade(ctx context.Context, g TeacherGrade, ch evaluation.Channel) (TeacherGrade, error)
		// DeleteGrades deletes the grades matching the filter. A zero period matches all of the teacher's grades.
		DeleteGrades(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (int, error)
		// CreateTable creates the teacher_grades table if it does not exist.
		CreateTable(ctx context.Context, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		QueryAll(ctx context.Context) ([]TeacherGrade, error)
		Get(ctx context.Context, filter GetFilter) (TeacherGrade, error)
		Submit(ctx context.Context, ng NewGrade) (TeacherGrade, error)
		Delete(ctx context.Context, filter GetFilter) (int, error)
		Eligibility(ctx context.Context, teacherID string, ch evaluation.Channel) (Eligibility, error)
		CreateTable(ctx context.Context) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		now     core.NowFunc
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, now: core.UTCNow}
}

// SetClock replaces the clock used to default the grading period.
func (svc *Service) SetClock(now core.NowFunc) {
	svc.now = now
}

// QueryAll returns every grade. A missing table yields no grades.
func (svc *Service) QueryAll(ctx context.Context) ([]TeacherGrade, error) {
	grades, err := svc.repo.QueryGrades(ctx)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTableMissing {
			return []TeacherGrade{}, nil
		}
		return nil, pkgerrors.Wrap(err, "querying grades")
	}
	return grades, nil
}

func (svc *Service) Get(ctx context.Context, filter GetFilter) (TeacherGrade, error) {
	filter.TeacherID = core.CleanString(filter.TeacherID, true /* lower */)
	g, err := svc.repo.GetGrade(ctx, filter)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTableMissing {
			return TeacherGrade{}, ErrNotFound
		}
		return TeacherGrade{}, err
	}
	return g, nil
}

// Submit records a grade on the submission's channel. Resubmitting for the same
// teacher and period overwrites that channel's values.
func (svc *Service) Submit(ctx context.Context, ng NewGrade) (TeacherGrade, error) {
	ng.Clean()
	if err := ng.check(); err != nil {
		return TeacherGrade{}, err
	}
	ch, _ := evaluation.ParseChannel(ng.Channel)

	now := svc.now().UTC()
	if ng.Month == 0 {
		ng.Month = int(now.Month())
	}
	if ng.Year == 0 {
		ng.Year = now.Year()
	}

	grade := core.Round2(*ng.Grade)
	g := TeacherGrade{
		TeacherID:    ng.TeacherID,
		QAEvaluator:  ng.QAEvaluator,
		QAComments:   ng.QAComments,
		AverageScore: ng.AverageScore.Ptr(),
		Month:        ng.Month,
		Year:         ng.Year,
		CreatedAt:    now.Truncate(time.Second),
		UpdatedAt:    now.Truncate(time.Second),
	}
	g.SetChannel(ch, &grade, ng.EvaluationIDs)

	stored, err := svc.repo.UpsertGrade(ctx, g, ch)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTableMissing {
			return TeacherGrade{}, pkgerrors.Wrap(err, "upserting grade")
		}
		return TeacherGrade{}, pkgerrors.WithStack(&TxError{Err: err, Grade: g})
	}

	svc.notify(stored, ch)
	return stored, nil
}

func (svc *Service) Delete(ctx context.Context, filter GetFilter) (int, error) {
	filter.TeacherID = core.CleanString(filter.TeacherID, true /* lower */)
	cnt, err := svc.repo.DeleteGrades(ctx, filter)
	if err != nil {
		if pkgerrors.Cause(err) == ErrTableMissing {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if cnt == 0 {
		return 0, ErrNotFound
	}
	return cnt, nil
}

// Eligibility checks the current period's grade of the teacher on the channel.
func (svc *Service) Eligibility(ctx context.Context, teacherID string, ch evaluation.Channel) (Eligibility, error) {
	now := svc.now().UTC()
	elig := Eligibility{
		TeacherID: core.CleanString(teacherID, true /* lower */),
		Channel:   ch,
		Month:     int(now.Month()),
		Year:      now.Year(),
	}

	g, err := svc.Get(ctx, GetFilter{TeacherID: elig.TeacherID, Month: elig.Month, Year: elig.Year})
	switch {
	case err == nil:
		elig.Grade = &g
		elig.CanEvaluate = CanEvaluate(&g, ch, now)
	case pkgerrors.Cause(err) == ErrNotFound:
		elig.CanEvaluate = true
	default:
		return Eligibility{}, pkgerrors.Wrap(err, "finding current grade")
	}
	return elig, nil
}

func (svc *Service) CreateTable(ctx context.Context) error {
	return pkgerrors.Wrap(svc.repo.CreateTable(ctx), "creating teacher_grades table")
}

type gradeRecordedData struct {
	ChannelName  string
	Period       string
	QAEvaluator  string
	Grade        float64
	AverageScore string
	Comments     string
}

// notify emails the teacher when the teacher id is an email address.
func (svc *Service) notify(g TeacherGrade, ch evaluation.Channel) {
	if svc.mailSvc == nil {
		return
	}
	addr, err := mail.ParseAddress(g.TeacherID)
	if err != nil {
		return
	}
	grade := g.ChannelGrade(ch)
	if grade == nil {
		return
	}

	chName := "regular class"
	if ch == evaluation.ChannelTrial {
		chName = "trial class"
	}
	data := gradeRecordedData{
		ChannelName: chName,
		Period:      time.Date(g.Year, time.Month(g.Month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006"),
		QAEvaluator: g.QAEvaluator,
		Grade:       *grade,
		Comments:    g.QAComments,
	}
	if g.AverageScore != nil {
		data.AverageScore = fmt.Sprintf("%.2f", *g.AverageScore)
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{*addr},
		Subject:      "Your " + chName + " grade has been recorded",
		TemplateName: "grade_recorded",
		TemplateData: data,
	})
}
