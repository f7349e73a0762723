package handlers

import (
	"github.com/arc-invoice/backend/internal/dispute"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	log            *zap.Logger
}

func NewDisputeHandler(disputeService *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, log: log}
}

func (h *DisputeHandler) ListDisputes(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	ds, err := h.disputeService.List(c.UserContext(), id, middleware.GetWallet(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewDisputeList(ds)})
}

// OpenDispute stores the dispute and its meta-evidence. For a terms escrow
// the response also carries the unsigned disputeDeliverable call for the
// payer's wallet.
func (h *DisputeHandler) OpenDispute(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	var req dispute.OpenRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.disputeService.Open(c.UserContext(), id, middleware.GetWallet(c), req)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"dispute":       dto.NewDisputeResponse(res.Dispute),
		"meta_evidence": res.MetaEvidence,
		"call":          res.Call,
	}})
}

func (h *DisputeHandler) LinkArbitration(c *fiber.Ctx) error {
	invoiceID, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	disputeID, ok := uuidParam(c, "disputeId")
	if !ok {
		return badRequest(c, "invalid dispute id")
	}
	var req dto.LinkArbitrationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	d, err := h.disputeService.LinkArbitration(c.UserContext(), invoiceID, disputeID, middleware.GetWallet(c), req.ArbitrationDisputeID)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewDisputeResponse(d)})
}
