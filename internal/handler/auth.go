package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-booking/internal/middleware"
	"github.com/iliyamo/room-booking/internal/model"
	"github.com/iliyamo/room-booking/internal/service"
)

// AuthAPI is the auth provider.  service.AuthService satisfies it.
type AuthAPI interface {
	SignUp(ctx context.Context, in service.SignUpInput) (service.Session, error)
	Login(ctx context.Context, email, password string) (service.Session, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, raw string) error
	Recover(ctx context.Context, email string) error
	Reset(ctx context.Context, token, password string) error
	UpdatePassword(ctx context.Context, caller model.Identity, password string) error
	Me(ctx context.Context, userID string) (model.Identity, model.Profile, error)
}

// AuthHandler serves /v1/auth and /v1/me.
type AuthHandler struct {
	Auth AuthAPI
}

func NewAuthHandler(a AuthAPI) *AuthHandler { return &AuthHandler{Auth: a} }

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type otpReq struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type recoverReq struct {
	Email string `json:"email"`
}
type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}
type passwordReq struct {
	Password string `json:"password"`
}
type meResp struct {
	User    model.Identity `json:"user"`
	Profile model.Profile  `json:"profile"`
}

// SignUp: create the profile and return tokens immediately.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req service.SignUpInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Auth.SignUp(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// Login: email + password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// SendOTP: deliver a one-time sign-in code.
func (h *AuthHandler) SendOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.SendOTP(ctx, req.Phone); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// VerifyOTP: exchange the code for tokens.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Phone == "" || req.Code == "" {
		return badRequest(c, "phone/code required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Auth.VerifyOTP(ctx, req.Phone, req.Code)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Refresh: rotate the refresh token and issue a new access token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout: revoke the refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Recover: mail a password reset link.  Always 202 for valid addresses.
func (h *AuthHandler) Recover(c echo.Context) error {
	var req recoverReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.Recover(ctx, req.Email); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

// Reset: set a new password with a recovery token.
func (h *AuthHandler) Reset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Token == "" {
		return badRequest(c, "token required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.Reset(ctx, req.Token, req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in user and profile.
func (h *AuthHandler) Me(c echo.Context) error {
	who := middleware.CurrentIdentity(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	id, p, err := h.Auth.Me(ctx, who.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, meResp{User: id, Profile: p})
}

// UpdatePassword changes the caller's own password.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	var req passwordReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Auth.UpdatePassword(ctx, middleware.CurrentIdentity(c), req.Password); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
