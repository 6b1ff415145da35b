package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cuota/core/ledger"
)

const contextObjectKey = "object"

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// studentMiddleware loads the Student of the `:id` path param into the context.
func studentMiddleware(svc *ledger.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
			if err != nil {
				return errHttpNotFound
			}
			st, err := svc.GetStudent(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding student by ID")
			}
			ctx.Set(contextObjectKey, st)
			return next(ctx)
		}
	}
}

func getContextStudent(ctx echo.Context) (ledger.Student, error) {
	st, ok := ctx.Get(contextObjectKey).(ledger.Student)
	if !ok {
		return ledger.Student{}, errors.Wrap(errObjNotFoundInCtx, "retrieving student from context")
	}
	return st, nil
}
