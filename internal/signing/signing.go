// Package signing implements the personal-message protocol payers use to
// agree to escrow terms and wallets use to log in.
package signing

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	termsMessageFormat = "I agree to the escrow terms.\n\nTerms Hash: %s\n\nSigned by: %s"
	loginMessageFormat = "Sign in to Arc Invoice.\n\nWallet: %s\nNonce: %s"
)

// TermsMessage is the exact text a payer signs to agree to terms.
func TermsMessage(termsHash, wallet string) string {
	return fmt.Sprintf(termsMessageFormat, termsHash, wallet)
}

func LoginMessage(nonce, wallet string) string {
	return fmt.Sprintf(loginMessageFormat, wallet, nonce)
}

// Recover returns the address that produced sig over the EIP-191 hash of message.
func Recover(message string, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	s := make([]byte, len(sig))
	copy(s, sig)
	if s[crypto.RecoveryIDOffset] >= 27 {
		s[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), s)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that signatureHex over message was produced by wallet.
func Verify(message, signatureHex, wallet string) error {
	if !common.IsHexAddress(wallet) {
		return errs.New(errs.KindInvalidSignature, "invalid wallet address")
	}
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return errs.Wrap(errs.KindInvalidSignature, err, "malformed signature")
	}
	addr, err := Recover(message, sig)
	if err != nil {
		return errs.Wrap(errs.KindInvalidSignature, err, "invalid signature")
	}
	if addr != common.HexToAddress(wallet) {
		return errs.New(errs.KindInvalidSignature, "invalid signature")
	}
	return nil
}

// Sign produces a 65-byte personal-message signature with v in {27, 28}.
func Sign(message string, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
