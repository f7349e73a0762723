package services

import (
	"context"
	"errors"
	"time"

	"github.com/arc-invoice/backend/internal/auth"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/signing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LoginChallenge struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService runs wallet sign-in: the wallet signs a one-time message and
// receives a session token for its address.
type AuthService struct {
	cache     Cache
	jwtSecret string
	jwtTTL    time.Duration
	nonceTTL  time.Duration
	log       *zap.Logger
}

func NewAuthService(cache Cache, jwtSecret string, jwtTTL, nonceTTL time.Duration, log *zap.Logger) *AuthService {
	if nonceTTL <= 0 {
		nonceTTL = 5 * time.Minute
	}
	return &AuthService{cache: cache, jwtSecret: jwtSecret, jwtTTL: jwtTTL, nonceTTL: nonceTTL, log: log}
}

func nonceKey(wallet string) string { return "auth:nonce:" + models.NormalizeWallet(wallet) }

// Challenge issues a login message for wallet. A new challenge replaces any
// outstanding one.
func (s *AuthService) Challenge(ctx context.Context, wallet string) (*LoginChallenge, error) {
	if !common.IsHexAddress(wallet) {
		return nil, errs.Validation(errs.FieldError{Field: "wallet", Message: "must be a hex address"})
	}
	nonce := uuid.NewString()
	msg := signing.LoginMessage(nonce, wallet)
	if err := s.cache.Set(ctx, nonceKey(wallet), msg, s.nonceTTL); err != nil {
		return nil, err
	}
	return &LoginChallenge{Nonce: nonce, Message: msg, ExpiresAt: time.Now().Add(s.nonceTTL)}, nil
}

// Login consumes the outstanding challenge and, if the signature matches,
// returns a session token.
func (s *AuthService) Login(ctx context.Context, wallet, signature string) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", errs.Validation(errs.FieldError{Field: "wallet", Message: "must be a hex address"})
	}
	msg, err := s.cache.GetDel(ctx, nonceKey(wallet))
	if errors.Is(err, ErrCacheMiss) {
		return "", errs.New(errs.KindUnauthorized, "Login challenge expired, request a new nonce")
	}
	if err != nil {
		return "", err
	}
	if err := signing.Verify(msg, signature, wallet); err != nil {
		return "", errs.Wrap(errs.KindUnauthorized, err, "Invalid login signature")
	}

	token, err := auth.GenerateJWT(s.jwtSecret, models.NormalizeWallet(wallet), s.jwtTTL)
	if err != nil {
		return "", err
	}
	s.log.Info("wallet signed in", zap.String("wallet", models.NormalizeWallet(wallet)))
	return token, nil
}
