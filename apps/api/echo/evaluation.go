package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/evaluation"
	"github.com/trezcool/recqa/core/report"
)

const reportTitle = "Evaluation Report"

type evaluationApi struct {
	svc      evaluation.ServiceInterface
	validate *validator.Validate
	now      core.NowFunc
}

func registerEvaluationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc evaluation.ServiceInterface,
	validate *validator.Validate,
) {
	api := evaluationApi{
		svc:      svc,
		validate: validate,
		now:      core.UTCNow,
	}

	eg := g.Group("/evaluations", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create, qaMiddleware)
	eg.GET("/summary", api.summary)
	eg.GET("/export", api.export, qaMiddleware)
	eg.GET("/:id", api.retrieve)
}

// Handlers

// bindFilter binds the query filter. Teachers only ever see their own evaluations.
func (api *evaluationApi) bindFilter(ctx echo.Context) (*evaluation.QueryFilter, error) {
	filter := new(evaluation.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsQA || claims.IsAdmin) {
		filter.TeacherID = claims.Email
	}
	return filter, nil
}

func (api *evaluationApi) query(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	evals, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	return ctx.JSON(http.StatusOK, evals)
}

func (api *evaluationApi) summary(ctx echo.Context) error {
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing evaluations")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *evaluationApi) create(ctx echo.Context) error {
	var data evaluation.NewEvaluation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluation")
	}
	if data.QAEvaluator == "" {
		if claims, err := getContextClaims(ctx); err == nil {
			data.QAEvaluator = claims.Email
		}
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ev, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating evaluation")
	}
	return ctx.JSON(http.StatusCreated, ev)
}

func (api *evaluationApi) retrieve(ctx echo.Context) error {
	ev, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding evaluation")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsQA || claims.IsAdmin) && ev.TeacherID != claims.Email {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, ev)
}

// export renders the selected evaluations as an HTML or XLSX download.
func (api *evaluationApi) export(ctx echo.Context) error {
	format, err := report.ParseFormat(ctx.QueryParam("format"))
	if err != nil {
		return err
	}
	filter, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	if len(filter.IDs) == 0 && filter.TeacherID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "id", Error: "select evaluations by id or teacher_id"})
	}

	reqCtx := ctx.Request().Context()
	evals, err := api.svc.Query(reqCtx, filter)
	if err != nil {
		return errors.Wrap(err, "querying evaluations")
	}
	templates, err := api.svc.Templates(reqCtx)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}

	rep := report.New(reportTitle, evals, templates, api.now())
	var body *bytes.Buffer
	switch format {
	case report.FormatXLSX:
		if body, err = report.RenderXLSX(rep); err != nil {
			return errors.Wrap(err, "rendering xlsx report")
		}
	default:
		body = new(bytes.Buffer)
		if err = report.RenderHTML(body, rep); err != nil {
			return errors.Wrap(err, "rendering html report")
		}
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+report.Filename(rep, format)+`"`)
	ctx.Response().Header().Set(echo.HeaderLastModified, rep.GeneratedAt.Format(http.TimeFormat))
	return ctx.Blob(http.StatusOK, report.ContentType(format), body.Bytes())
}

