package main

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

const (
	envPrivateKey = "ESCROWCTL_PRIVATE_KEY"
	envPassphrase = "ESCROWCTL_PASSPHRASE"
)

// loadKey resolves the signing key: a keystore file when keystorePath is
// set, otherwise a hex key from the environment.
func loadKey(keystorePath string, stderr io.Writer) (*ecdsa.PrivateKey, error) {
	if keystorePath == "" {
		raw := strings.TrimPrefix(strings.TrimSpace(os.Getenv(envPrivateKey)), "0x")
		if raw == "" {
			return nil, fmt.Errorf("set %s or pass --keystore", envPrivateKey)
		}
		key, err := crypto.HexToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envPrivateKey, err)
		}
		return key, nil
	}

	keyJSON, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, err
	}
	pass, err := passphrase(stderr)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(keyJSON, pass)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return decrypted.PrivateKey, nil
}

func passphrase(stderr io.Writer) (string, error) {
	if v, ok := os.LookupEnv(envPassphrase); ok {
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("%s is set but empty", envPassphrase)
		}
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", envPassphrase)
	}
	fmt.Fprint(stderr, "Keystore passphrase: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	return string(b), nil
}
