package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/recqa/core/evaluation"
)

type templateApi struct {
	svc      evaluation.ServiceInterface
	validate *validator.Validate
}

func registerTemplateAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc evaluation.ServiceInterface,
	validate *validator.Validate,
) {
	api := templateApi{
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/templates", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())
	tg.GET("/resolve", api.resolve)
	tg.GET("/:id", api.retrieve)

	g.GET("/class-codes/validate", api.validateClassCode, jwt)
}

// Handlers

func (api *templateApi) query(ctx echo.Context) error {
	templates, err := api.svc.Templates(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	return ctx.JSON(http.StatusOK, templates)
}

func (api *templateApi) create(ctx echo.Context) error {
	var data evaluation.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *templateApi) retrieve(ctx echo.Context) error {
	tmpl, err := api.svc.Template(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *templateApi) resolve(ctx echo.Context) error {
	res, err := api.svc.ResolveTemplate(ctx.Request().Context(), ctx.QueryParam("class_code"))
	if err != nil {
		return errors.Wrap(err, "resolving template")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *templateApi) validateClassCode(ctx echo.Context) error {
	code := ctx.QueryParam("code")
	return ctx.JSON(http.StatusOK, ClassCodeResponse{
		Code:    code,
		Valid:   evaluation.ValidateClassCode(code),
		Channel: evaluation.ChannelForClassCode(code),
	})
}

type ClassCodeResponse struct {
	Code    string             `json:"code"`
	Valid   bool               `json:"valid"`
	Channel evaluation.Channel `json:"channel"`
}
