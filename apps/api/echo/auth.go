package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/microlms/core/auth"
)

// authenticate runs the gate once per request and stores the identity in the request context.
// Requests without a bearer token go through as anonymous.
func authenticate(gate *auth.Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			reqCtx, err := gate.AuthenticateContext(req.Context(), req.Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return err
			}
			ctx.SetRequest(req.WithContext(reqCtx))
			return next(ctx)
		}
	}
}

// requireAuth rejects anonymous requests.
func requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := auth.RequireAuthenticated(identity(ctx)); err != nil {
			return err
		}
		return next(ctx)
	}
}

// identity returns the request identity, anonymous if the gate did not run.
func identity(ctx echo.Context) auth.Identity {
	id, _ := auth.FromContext(ctx.Request().Context())
	return id
}
