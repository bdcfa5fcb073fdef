package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/suiichiba/marketplace/internal/core/ports"
)

// ProfileHandler serves the signed-in user's profile and dashboard.
type ProfileHandler struct {
	profiles  ports.ProfileService
	dashboard ports.DashboardService
}

func NewProfileHandler(profiles ports.ProfileService, dashboard ports.DashboardService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, dashboard: dashboard}
}

// Get handles GET /v1/profile.
//
// @Summary      My profile
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserProfile
// @Failure      404  {object}  errorResponse
// @Router       /v1/profile [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	p, err := h.profiles.Get(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Update handles PATCH /v1/profile.
//
// @Summary      Edit my profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  domain.UserProfile
// @Failure      400   {object}  errorResponse
// @Router       /v1/profile [patch]
func (h *ProfileHandler) Update(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.profiles.Update(c.Request().Context(), s.UserID, toProfileUpdate(req))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// UploadAvatar handles POST /v1/profile/avatar (multipart field "file").
//
// @Summary      Upload my avatar
// @Tags         profile
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Image"
// @Success      200   {object}  domain.UserProfile
// @Failure      400   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Router       /v1/profile/avatar [post]
func (h *ProfileHandler) UploadAvatar(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	fh, f, err := formImage(c)
	if err != nil {
		return err
	}
	defer f.Close()

	p, err := h.profiles.UploadAvatar(c.Request().Context(), s.UserID, fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// SetWallet handles PUT /v1/profile/wallet.
//
// @Summary      Link my Sui wallet
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      setWalletRequest  true  "Wallet address"
// @Success      200   {object}  domain.UserProfile
// @Failure      400   {object}  errorResponse
// @Router       /v1/profile/wallet [put]
func (h *ProfileHandler) SetWallet(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	var req setWalletRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, err := h.profiles.SetWallet(c.Request().Context(), s.UserID, req.Address)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Dashboard handles GET /v1/dashboard.
//
// @Summary      Dashboard overview
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ports.Dashboard
// @Router       /v1/dashboard [get]
func (h *ProfileHandler) Dashboard(c echo.Context) error {
	s, err := ctxSession(c)
	if err != nil {
		return err
	}
	d, err := h.dashboard.Load(c.Request().Context(), s.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}
