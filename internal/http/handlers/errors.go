package handlers

import (
	"errors"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindUnauthorized:
		return fiber.StatusUnauthorized
	case errs.KindForbidden:
		return fiber.StatusForbidden
	case errs.KindNotFound:
		return fiber.StatusNotFound
	case errs.KindValidation, errs.KindInvalidSignature, errs.KindWrongContractVersion,
		errs.KindUnsupportedNetwork:
		return fiber.StatusBadRequest
	case errs.KindTermsHashMismatch, errs.KindStaleDeliverableState, errs.KindStorageConflict, errs.KindBusy:
		return fiber.StatusConflict
	case errs.KindOnChainCallFailure, errs.KindContractNotDeployed:
		return fiber.StatusBadGateway
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := StatusFor(err)
	resp := dto.ErrorResponse{
		Error:     errs.Message(err),
		Fields:    errs.FieldsOf(err),
		RequestID: middleware.GetRequestID(c),
	}
	if status >= fiber.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", resp.RequestID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		if status == fiber.StatusInternalServerError {
			resp.Error = "internal server error"
		}
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)})
}

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}
