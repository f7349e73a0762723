package services

import (
	"context"
	"testing"
	"time"

	"github.com/arc-invoice/backend/internal/auth"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/models"
	"github.com/arc-invoice/backend/internal/signing"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWalletLogin(t *testing.T) {
	svc := NewAuthService(newMemCache(), "secret", time.Hour, time.Minute, zap.NewNop())
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()
	ctx := context.Background()

	ch, err := svc.Challenge(ctx, wallet)
	require.NoError(t, err)
	require.Equal(t, signing.LoginMessage(ch.Nonce, wallet), ch.Message)

	sig, err := signing.Sign(ch.Message, key)
	require.NoError(t, err)
	token, err := svc.Login(ctx, wallet, hexutil.Encode(sig))
	require.NoError(t, err)

	claims, err := auth.ParseJWT("secret", token)
	require.NoError(t, err)
	require.Equal(t, models.NormalizeWallet(wallet), claims.Wallet)

	_, err = svc.Login(ctx, wallet, hexutil.Encode(sig))
	require.ErrorIs(t, err, errs.ErrUnauthorized, "a challenge is consumed by the first login")
}

func TestWalletLoginRejectsForeignSignature(t *testing.T) {
	svc := NewAuthService(newMemCache(), "secret", time.Hour, time.Minute, zap.NewNop())
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()
	wallet := crypto.PubkeyToAddress(key.PublicKey).Hex()

	ch, err := svc.Challenge(context.Background(), wallet)
	require.NoError(t, err)
	sig, _ := signing.Sign(ch.Message, other)

	_, err = svc.Login(context.Background(), wallet, hexutil.Encode(sig))
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = svc.Challenge(context.Background(), "nope")
	require.ErrorIs(t, err, errs.ErrValidation)
}
