package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/microlms/core"
	"github.com/trezcool/microlms/core/auth"
	"github.com/trezcool/microlms/core/user"
)

type userApi struct {
	svc    *user.Service
	tokens *auth.TokenService
	logger core.Logger
}

func registerUserAPI(g *echo.Group, svc *user.Service, tokens *auth.TokenService, logger core.Logger) {
	api := userApi{
		svc:    svc,
		tokens: tokens,
		logger: logger,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/register", api.register)
	ag.GET("/verify", api.verify)
	ag.POST("/login", api.login)
	ag.POST("/forgot-password", api.forgotPassword)
	ag.GET("/validate-reset-code", api.validateResetCode)
	ag.POST("/reset-password", api.resetPassword)

	// authed endpoints
	ag.PUT("/me", api.updateProfile, requireAuth)
	ag.DELETE("/me", api.deleteAccount, requireAuth)
	ag.DELETE("/users", api.deleteUser, requireAuth)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{
		User:    usr,
		Success: "Registration successful. Please verify your email before logging in.",
	})
}

func (api *userApi) verify(ctx echo.Context) error {
	ok, err := api.svc.Verify(ctx.Request().Context(), ctx.QueryParam("code"))
	if err != nil {
		return errors.Wrap(err, "verifying user")
	}
	if !ok {
		return errInvalidCode
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Verification successful."})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if usr == nil {
		return errInvalidCredentials
	}
	token, err := api.tokens.Issue(usr.Email, usr.Roles)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		Email:    usr.Email,
		FullName: usr.FullName,
		Roles:    usr.Roles,
	})
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := api.svc.InitiateReset(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password reset code sent to your email."})
}

func (api *userApi) validateResetCode(ctx echo.Context) error {
	valid := api.svc.ValidateResetCode(ctx.Request().Context(), ctx.QueryParam("code"))
	code := http.StatusOK
	if !valid {
		code = http.StatusBadRequest
	}
	return ctx.JSON(code, echo.Map{"valid": valid})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	ok, err := api.svc.CompleteReset(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "resetting password")
	}
	if !ok {
		return errInvalidResetCode
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password reset successful!"})
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), identity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) deleteAccount(ctx echo.Context) error {
	id := identity(ctx)
	if err := api.svc.DeleteAccount(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting account")
	}
	api.logger.Info(fmt.Sprintf("account %s deleted", id.Email))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) deleteUser(ctx echo.Context) error {
	var data DeleteUserRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteUserRequest")
	}
	actor := identity(ctx)
	if err := api.svc.DeleteAccountAsAdmin(ctx.Request().Context(), actor, data.Email); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	api.logger.Info(fmt.Sprintf("account %s deleted by %s", data.Email, actor.Email))
	return ctx.NoContent(http.StatusNoContent)
}

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	LoginResponse struct {
		Token    string     `json:"token"`
		Email    string     `json:"email"`
		FullName string     `json:"full_name"`
		Roles    auth.Roles `json:"roles"`
	}

	RegisterResponse struct {
		User    user.User `json:"user"`
		Success string    `json:"success"`
	}

	PasswordResetRequest struct {
		Email string `json:"email"`
	}

	DeleteUserRequest struct {
		Email string `json:"email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
