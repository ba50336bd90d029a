package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"mailblast/engine"
	"mailblast/models"
	"mailblast/utils"
)

type CampaignController struct {
	Engine *engine.Engine
	Logger *log.Logger
}

func NewCampaignController(e *engine.Engine, logger *log.Logger) *CampaignController {
	return &CampaignController{
		Engine: e,
		Logger: logger,
	}
}

func currentAccount(c *fiber.Ctx) *models.Account {
	return c.Locals("account").(*models.Account)
}

// engineError maps engine errors onto HTTP responses. Anything unrecognized
// is a 500.
func engineError(c *fiber.Ctx, err error) error {
	var quotaErr *engine.QuotaError
	if errors.As(err, &quotaErr) {
		return utils.ErrorResponse(c, fiber.StatusPaymentRequired, quotaErr.Reason, nil)
	}

	switch {
	case errors.Is(err, engine.ErrCampaignNotFound),
		errors.Is(err, engine.ErrContactNotFound),
		errors.Is(err, engine.ErrUnknownRecipient):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidStateTransition),
		errors.Is(err, engine.ErrDuplicateContact):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	case errors.Is(err, engine.ErrMissingField),
		errors.Is(err, engine.ErrInvalidEmail),
		errors.Is(err, engine.ErrInvalidSchedule),
		errors.Is(err, engine.ErrEmptyRecipientList):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), nil)
	}

	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal server error", err)
}
