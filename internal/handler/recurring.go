package handler

import (
	"context"
	"errors"
	"net/http"
	"storefront-payments/internal/dto"
	"storefront-payments/internal/profile"
	"storefront-payments/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type RecurringHandler struct {
	profileService service.ProfileService
}

func NewRecurringHandler(profileService service.ProfileService) *RecurringHandler {
	return &RecurringHandler{
		profileService: profileService,
	}
}

func profileError(profileID string, err error) error {
	if errors.Is(err, service.ErrProfileNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	log.Error().Err(err).Str("profile_id", profileID).Msg("recurring profile request failed")
	if errors.Is(err, profile.ErrAllGatewaysFailed) || errors.Is(err, profile.ErrNoGateway) {
		return echo.NewHTTPError(http.StatusBadGateway, "recurring profile gateway unavailable")
	}
	return err
}

func (h *RecurringHandler) GetProfile(c echo.Context) error {
	ctx := c.Request().Context()
	profileID := c.Param("profile_id")

	p, err := h.profileService.Get(ctx, profileID)
	if err != nil {
		return profileError(profileID, err)
	}

	return c.JSON(http.StatusOK, dto.NewProfileResponse(p))
}

type profileAction func(ctx context.Context, profileID, note string) (*profile.Profile, error)

func (h *RecurringHandler) act(c echo.Context, action profileAction) error {
	ctx := c.Request().Context()
	profileID := c.Param("profile_id")

	var req dto.ProfileNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	p, err := action(ctx, profileID, req.Note)
	if err != nil {
		return profileError(profileID, err)
	}

	log.Info().Str("profile_id", profileID).Str("status", string(p.Status)).Msg("recurring profile updated by admin")
	return c.JSON(http.StatusOK, dto.NewProfileResponse(p))
}

func (h *RecurringHandler) CancelProfile(c echo.Context) error {
	return h.act(c, h.profileService.Cancel)
}

func (h *RecurringHandler) SuspendProfile(c echo.Context) error {
	return h.act(c, h.profileService.Suspend)
}

func (h *RecurringHandler) ReactivateProfile(c echo.Context) error {
	return h.act(c, h.profileService.Reactivate)
}
