package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core/ledger"
)

type studentApi struct {
	svc      *ledger.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.LedgerSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students", jwt)
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.GET("/export", api.export)

	// detail endpoints
	dg := sg.Group("/:id", studentMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
	dg.GET("/debts", api.debts)
	dg.GET("/statement", api.statement)
	dg.POST("/statement/pay", api.payPeriod)
}

// Handlers

func (api *studentApi) queryStudents(ctx echo.Context) ([]ledger.StudentSummary, error) {
	filter := new(ledger.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter, ordering.Orderings)
	return students, errors.Wrap(err, "querying students")
}

func (api *studentApi) query(ctx echo.Context) error {
	students, err := api.queryStudents(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) export(ctx echo.Context) error {
	students, err := api.queryStudents(ctx)
	if err != nil {
		return err
	}
	today := api.svc.Today()

	ctx.Response().Header().Set(echo.HeaderContentType, xlsxContentType)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+exportFilename(today))
	ctx.Response().WriteHeader(http.StatusOK)
	return errors.Wrap(writeStudentsXLSX(ctx.Response(), students, today), "writing xlsx")
}

func (api *studentApi) create(ctx echo.Context) error {
	var data ledger.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.RegisterStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudent(ctx.Request().Context(), st.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Student deleted."})
}

func (api *studentApi) debts(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st.Debts)
}

func (api *studentApi) statement(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}

	var q StatementQuery
	if err = ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to StatementQuery")
	}
	today := api.svc.Today()
	if !q.Date.IsZero() {
		today = q.Date.Time
	}

	items, err := api.svc.Statement(ctx.Request().Context(), st.ID, today)
	if err != nil {
		return errors.Wrap(err, "computing statement")
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *studentApi) payPeriod(ctx echo.Context) error {
	st, err := getContextStudent(ctx)
	if err != nil {
		return err
	}

	var data ledger.PeriodPayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PeriodPayment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.PayPeriod(ctx.Request().Context(), st.ID, data)
	if err != nil {
		return errors.Wrap(err, "paying period")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

// StatementQuery binds `?date=YYYY-MM-DD`; the statement is computed as of today when omitted.
type StatementQuery struct {
	Date ledger.Date `query:"date"`
}
