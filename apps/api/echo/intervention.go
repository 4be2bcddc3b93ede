package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/intervention"
	"github.com/trezcool/mahudhurio/core/user"
)

type interventionApi struct {
	svc      intervention.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerInterventionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc intervention.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := interventionApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ig := g.Group("/interventions", jwt, staffMiddleware())
	ig.GET("", api.query)
	ig.POST("/scan", api.scan, adminMiddleware())
	ig.GET("/health", api.health)

	dg := ig.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/acknowledge", api.acknowledge)
	dg.POST("/start", api.start)
	dg.POST("/resolve", api.resolve)
	dg.POST("/escalate", api.escalate)

	g.GET("/students/:id/interventions", api.studentInterventions, jwt, studentSelfOrStaffMiddleware())
}

// Handlers

func (api *interventionApi) query(ctx echo.Context) error {
	filter := new(intervention.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []intervention.Intervention{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ivns, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying interventions")
	}
	if ivns == nil {
		ivns = []intervention.Intervention{}
	}
	return ctx.JSON(http.StatusOK, ivns)
}

func (api *interventionApi) retrieve(ctx echo.Context) error {
	ivn, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == intervention.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding intervention")
	}
	return ctx.JSON(http.StatusOK, ivn)
}

func (api *interventionApi) studentInterventions(ctx echo.Context) error {
	ivns, err := api.svc.QueryByStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying student interventions")
	}
	if ivns == nil {
		ivns = []intervention.Intervention{}
	}
	return ctx.JSON(http.StatusOK, ivns)
}

// transition runs one lifecycle operation and maps domain errors to HTTP ones.
func (api *interventionApi) transition(ctx echo.Context, op func() (intervention.Intervention, error)) error {
	ivn, err := op()
	if err != nil {
		switch errors.Cause(err) {
		case intervention.ErrNotFound:
			return errHttpNotFound
		case intervention.ErrResolved, intervention.ErrInvalidTransition:
			return echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
		}
		return errors.Wrap(err, "updating intervention")
	}
	return ctx.JSON(http.StatusOK, ivn)
}

func (api *interventionApi) acknowledge(ctx echo.Context) error {
	return api.transition(ctx, func() (intervention.Intervention, error) {
		return api.svc.Acknowledge(ctx.Request().Context(), ctx.Param("id"))
	})
}

func (api *interventionApi) start(ctx echo.Context) error {
	return api.transition(ctx, func() (intervention.Intervention, error) {
		return api.svc.Start(ctx.Request().Context(), ctx.Param("id"))
	})
}

func (api *interventionApi) resolve(ctx echo.Context) error {
	return api.transition(ctx, func() (intervention.Intervention, error) {
		return api.svc.Resolve(ctx.Request().Context(), ctx.Param("id"))
	})
}

func (api *interventionApi) escalate(ctx echo.Context) error {
	var data EscalateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EscalateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return api.transition(ctx, func() (intervention.Intervention, error) {
		return api.svc.Escalate(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	})
}

func (api *interventionApi) update(ctx echo.Context) error {
	var data intervention.UpdateIntervention
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateIntervention")
	}
	return api.transition(ctx, func() (intervention.Intervention, error) {
		return api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	})
}

func (api *interventionApi) scan(ctx echo.Context) error {
	res, err := api.svc.Scan(ctx.Request().Context(), intervention.DefaultThresholds)
	if err != nil {
		return errors.Wrap(err, "scanning students")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *interventionApi) health(ctx echo.Context) error {
	hs, err := api.svc.HealthStatus(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying health status")
	}
	return ctx.JSON(http.StatusOK, hs)
}

type EscalateRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (er *EscalateRequest) Validate(validate *validator.Validate) error {
	er.Reason = core.CleanString(er.Reason)
	return validate.Struct(er)
}
