package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/grade"
)

type gradeApi struct {
	svc      grade.ServiceInterface
	validate *validator.Validate
}

func registerGradeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc grade.ServiceInterface,
	validate *validator.Validate,
) {
	api := gradeApi{
		svc:      svc,
		validate: validate,
	}

	gg := g.Group("/teacher-grades", jwt)
	gg.GET("", api.query, qaMiddleware)
	gg.POST("", api.submit, qaMiddleware)
	gg.POST("/create-table", api.createTable, adminMiddleware())

	dg := gg.Group("/:teacherId")
	dg.GET("", api.retrieve, selfOrQAMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/eligibility", api.eligibility, qaMiddleware)
}

// Handlers

func (api *gradeApi) query(ctx echo.Context) error {
	grades, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	filter, err := periodFilter(ctx)
	if err != nil {
		return err
	}

	g, err := api.svc.Get(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "finding grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) submit(ctx echo.Context) error {
	var data grade.NewGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// QA staff grade under their own name, admins under any
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !claims.IsAdmin && data.QAEvaluator != claims.Email {
		return core.NewValidationError(nil, core.FieldError{Field: "qa_evaluator", Error: "you can only submit grades as yourself"})
	}

	ch, _ := evaluation.ParseChannel(data.Channel)
	g, err := api.svc.Submit(ctx.Request().Context(), data)
	observeGradeSubmission(ch, err)
	if err != nil {
		return errors.Wrap(err, "submitting grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	filter, err := periodFilter(ctx)
	if err != nil {
		return err
	}

	cnt, err := api.svc.Delete(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "deleting grades")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("deleted %d grade(s) of %s", cnt, filter.TeacherID),
	})
}

func (api *gradeApi) eligibility(ctx echo.Context) error {
	ch, err := evaluation.ParseChannel(ctx.QueryParam("channel"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "channel", Error: err.Error()})
	}

	elig, err := api.svc.Eligibility(ctx.Request().Context(), teacherIDParam(ctx), ch)
	if err != nil {
		return errors.Wrap(err, "checking eligibility")
	}
	return ctx.JSON(http.StatusOK, elig)
}

func (api *gradeApi) createTable(ctx echo.Context) error {
	if err := api.svc.CreateTable(ctx.Request().Context()); err != nil {
		return errors.Wrap(err, "creating table")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "teacher_grades table is ready"})
}

// periodFilter reads :teacherId and the optional ?month=&year= of a request.
// month and year go together.
func periodFilter(ctx echo.Context) (grade.GetFilter, error) {
	filter := grade.GetFilter{TeacherID: teacherIDParam(ctx)}

	var flds []core.FieldError
	month, ok := queryInt(ctx, "month")
	if !ok || month < 0 || month > 12 {
		flds = append(flds, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	year, ok := queryInt(ctx, "year")
	if !ok || year < 0 {
		flds = append(flds, core.FieldError{Field: "year", Error: "invalid year"})
	}
	if len(flds) == 0 {
		switch {
		case month != 0 && year == 0:
			flds = append(flds, core.FieldError{Field: "year", Error: "year is required when month is given"})
		case year != 0 && month == 0:
			flds = append(flds, core.FieldError{Field: "month", Error: "month is required when year is given"})
		}
	}
	if len(flds) > 0 {
		return grade.GetFilter{}, core.NewValidationError(nil, flds...)
	}
	filter.Month, filter.Year = month, year
	return filter, nil
}

type MessageResponse struct {
	Message string `json:"message"`
}
