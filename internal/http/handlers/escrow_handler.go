package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrowService *services.EscrowService
	log           *zap.Logger
}

func NewEscrowHandler(escrowService *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrowService: escrowService, log: log}
}

func (h *EscrowHandler) GetEscrow(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	st, err := h.escrowService.Snapshot(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: st})
}

// AttachEscrow binds the escrow deployed by the creator's transaction.
func (h *EscrowHandler) AttachEscrow(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	var req dto.AttachEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	inv, err := h.escrowService.AttachFromReceipt(c.UserContext(), id, middleware.GetWallet(c), req.TxHash)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewInvoiceResponse(inv)})
}
