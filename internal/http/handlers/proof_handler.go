package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProofHandler struct {
	proofService *services.ProofService
	log          *zap.Logger
}

func NewProofHandler(proofService *services.ProofService, log *zap.Logger) *ProofHandler {
	return &ProofHandler{proofService: proofService, log: log}
}

func (h *ProofHandler) ListProofs(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	proofs, err := h.proofService.List(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: proofs})
}

func (h *ProofHandler) SubmitProof(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	var req services.ProofInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	proof, err := h.proofService.Submit(c.UserContext(), id, middleware.GetWallet(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: proof})
}
