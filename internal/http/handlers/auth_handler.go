package handlers

import (
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	authService *services.AuthService
	log         *zap.Logger
}

func NewAuthHandler(authService *services.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req dto.AuthNonceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ch, err := h.authService.Challenge(c.UserContext(), req.Wallet)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ch})
}

func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.AuthWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Signature == "" {
		return badRequest(c, "signature is required")
	}

	token, err := h.authService.Login(c.UserContext(), req.Wallet, req.Signature)
	if err != nil {
		h.log.Debug("wallet auth failed", zap.String("wallet", req.Wallet), zap.Error(err))
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.AuthResponse{Token: token, Wallet: models.NormalizeWallet(req.Wallet)})
}
