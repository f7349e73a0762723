package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SignatureHandler struct {
	signatureService *services.SignatureService
	log              *zap.Logger
}

func NewSignatureHandler(signatureService *services.SignatureService, log *zap.Logger) *SignatureHandler {
	return &SignatureHandler{signatureService: signatureService, log: log}
}

// SignTerms records the payer's signature over the stored terms hash. The
// signature itself authenticates the caller.
func (h *SignatureHandler) SignTerms(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	var req services.SignInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.signatureService.RecordPayerSignature(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	status := fiber.StatusCreated
	if res.AlreadySigned {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *SignatureHandler) ListSignatures(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	sigs, err := h.signatureService.ListSignatures(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sigs})
}
