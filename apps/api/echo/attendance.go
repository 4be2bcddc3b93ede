package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/user"
)

type attendanceApi struct {
	svc      attendance.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := attendanceApi{svc: svc, usrSvc: usrSvc, validate: validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.record, teacherOrAdminMiddleware())
	ag.POST("/bulk", api.bulkRecord, teacherOrAdminMiddleware())
	ag.GET("", api.query, staffMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())

	sg := g.Group("/students/:id", jwt, studentSelfOrStaffMiddleware())
	sg.GET("/attendance", api.studentEvents)
	sg.GET("/risk", api.studentRisk)

	g.GET("/courses/:id/risk-summary", api.courseRiskSummary, jwt, staffMiddleware())
}

// Handlers

func (api *attendanceApi) record(ctx echo.Context) error {
	var data attendance.NewEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evt, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == attendance.ErrDuplicateEvent {
			return echo.NewHTTPError(http.StatusConflict, attendance.ErrDuplicateEvent.Error())
		}
		return errors.Wrap(err, "recording attendance event")
	}
	return ctx.JSON(http.StatusCreated, evt)
}

func (api *attendanceApi) bulkRecord(ctx echo.Context) error {
	var data attendance.BulkNewEvents
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkNewEvents")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	evts, err := api.svc.BulkRecord(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == attendance.ErrDuplicateEvent {
			return echo.NewHTTPError(http.StatusConflict, attendance.ErrDuplicateEvent.Error())
		}
		return errors.Wrap(err, "recording attendance events")
	}
	return ctx.JSON(http.StatusCreated, evts)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	filter := new(attendance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []attendance.Event{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	evts, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying attendance events")
	}
	if evts == nil {
		evts = []attendance.Event{}
	}
	return ctx.JSON(http.StatusOK, evts)
}

func (api *attendanceApi) studentEvents(ctx echo.Context) error {
	evts, err := api.svc.StudentEvents(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("course"))
	if err != nil {
		return errors.Wrap(err, "querying student events")
	}
	if evts == nil {
		evts = []attendance.Event{}
	}
	return ctx.JSON(http.StatusOK, evts)
}

func (api *attendanceApi) studentRisk(ctx echo.Context) error {
	var opts []attendance.AnalysisOptions
	if window, err := strconv.Atoi(ctx.QueryParam("trend_window")); err == nil && window > 0 {
		opts = append(opts, attendance.AnalysisOptions{TrendWindow: window})
	}

	assessment, err := api.svc.AssessStudentRisk(ctx.Request().Context(), ctx.Param("id"), ctx.QueryParam("course"), opts...)
	if err != nil {
		return errors.Wrap(err, "assessing student risk")
	}
	return ctx.JSON(http.StatusOK, assessment)
}

func (api *attendanceApi) courseRiskSummary(ctx echo.Context) error {
	summary, err := api.svc.SummarizeCourseRisk(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "summarizing course risk")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *attendanceApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting attendance events")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// studentSelfOrStaffMiddleware lets students read their own records while staff can read anyone's.
func studentSelfOrStaffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || claims.IsTeacher || claims.IsCounselor || ctx.Param("id") == claims.Subject {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
