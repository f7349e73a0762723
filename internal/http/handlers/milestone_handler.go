package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/middleware"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type MilestoneHandler struct {
	milestoneService *services.MilestoneService
	log              *zap.Logger
}

func NewMilestoneHandler(milestoneService *services.MilestoneService, log *zap.Logger) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestoneService, log: log}
}

func (h *MilestoneHandler) ListMilestones(c *fiber.Ctx) error {
	id, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	ms, err := h.milestoneService.List(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewMilestoneList(ms)})
}

// UpdateMilestone runs under optional auth: a payer marks a milestone funded
// right after paying, without a session.
func (h *MilestoneHandler) UpdateMilestone(c *fiber.Ctx) error {
	invoiceID, ok := uuidParam(c, "id")
	if !ok {
		return badRequest(c, "invalid invoice id")
	}
	milestoneID, ok := uuidParam(c, "milestoneId")
	if !ok {
		return badRequest(c, "invalid milestone id")
	}

	var req dto.UpdateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	upd, err := req.ToUpdate()
	if err != nil {
		return badRequest(c, "proof_url must be a string or null")
	}

	ms, err := h.milestoneService.Update(c.UserContext(), invoiceID, milestoneID, middleware.GetWallet(c), upd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.NewMilestoneResponse(ms)})
}
