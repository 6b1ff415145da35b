package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core/ledger"
)

type ledgerApi struct {
	svc      *ledger.Service
	validate *validator.Validate
}

func registerLedgerAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := ledgerApi{
		svc:      deps.LedgerSvc,
		validate: deps.Validate,
	}

	g.POST("/debts", api.materializeDebt, jwt)
	g.POST("/payments", api.recordPayment, jwt)
	g.GET("/dashboard", api.dashboard, jwt)
}

// Handlers

// materializeDebt answers 201 when the Debt is booked and 200 when it already was.
func (api *ledgerApi) materializeDebt(ctx echo.Context) error {
	var data ledger.NewDebt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDebt")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	debt, created, err := api.svc.MaterializeDebt(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "materializing debt")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, debt)
}

func (api *ledgerApi) recordPayment(ctx echo.Context) error {
	var data ledger.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	pmt, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, pmt)
}

func (api *ledgerApi) dashboard(ctx echo.Context) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
