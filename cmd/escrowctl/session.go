package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/arc-invoice/backend/internal/apiclient"
	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/config"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/escrow"
	"github.com/arc-invoice/backend/internal/fees"
	"github.com/arc-invoice/backend/internal/funding"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/signing"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// commonFlags are shared by every subcommand.
type commonFlags struct {
	api      string
	keystore string
	invoice  string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("escrowctl "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cf := &commonFlags{}
	api := os.Getenv("ESCROWCTL_API")
	if api == "" {
		api = "http://localhost:3000"
	}
	fs.StringVar(&cf.api, "api", api, "API base URL")
	fs.StringVar(&cf.keystore, "keystore", "", "keystore file")
	fs.StringVar(&cf.invoice, "invoice", "", "invoice id")
	return fs, cf
}

// session is a signed-in wallet with a chain connection and the invoice it
// acts on.
type session struct {
	log       *zap.Logger
	rpc       *chain.Client
	tx        *chain.Transactor
	api       *apiclient.Client
	deps      escrow.Deps
	invoiceID uuid.UUID
	invoice   *dto.InvoiceDetailsResponse
}

// dial connects to the chain and prepares read-only driver dependencies.
func dial(ctx context.Context) (*chain.Client, escrow.Deps, *zap.Logger, error) {
	log, _ := zap.NewDevelopment()
	cfg := config.Load()

	book, err := cfg.AddressBook()
	if err != nil {
		return nil, escrow.Deps{}, nil, err
	}
	rpc, err := chain.Dial(ctx, cfg.RPCURL, log)
	if err != nil {
		return nil, escrow.Deps{}, nil, err
	}
	return rpc, escrow.Deps{
		Book:    book,
		Network: cfg.ChainID,
		Reader:  chain.NewReader(rpc, log),
		Fees:    fees.NewSchedule(cfg.PayerFeeBPS),
		Log:     log,
	}, log, nil
}

// open signs in with the local key and loads the invoice.
func open(ctx context.Context, cf *commonFlags, stderr io.Writer) (*session, error) {
	invoiceID, err := uuid.Parse(cf.invoice)
	if err != nil {
		return nil, errors.New("--invoice must be an invoice id")
	}
	key, err := loadKey(cf.keystore, stderr)
	if err != nil {
		return nil, err
	}
	rpc, deps, log, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	s := &session{log: log, rpc: rpc, api: apiclient.New(cf.api, log), deps: deps, invoiceID: invoiceID}
	s.tx = chain.NewTransactor(rpc.Eth(), key, rpc.ChainID(), log)
	s.deps.Sender = s.tx

	if err := s.login(ctx); err != nil {
		rpc.Close()
		return nil, fmt.Errorf("login: %w", err)
	}
	if s.invoice, err = s.api.Invoice(ctx, invoiceID); err != nil {
		rpc.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() { s.rpc.Close() }

func (s *session) login(ctx context.Context) error {
	ch, err := s.api.Nonce(ctx, s.tx.From())
	if err != nil {
		return err
	}
	sig, err := signing.Sign(ch.Message, s.tx.Key())
	if err != nil {
		return err
	}
	return s.api.Login(ctx, s.tx.From(), sig)
}

// enableFunding routes terms escrow funding through the orchestrator, with
// the API recording the terms signature.
func (s *session) enableFunding() error {
	token, err := s.deps.Book.Lookup(s.deps.Network, chain.ContractUSDC)
	if err != nil {
		return err
	}
	reader, ok := s.deps.Reader.(funding.StatusReader)
	if !ok {
		return errors.New("state reader cannot drive funding")
	}
	sink := apiclient.SignatureSink{Client: s.api, InvoiceID: s.invoiceID}
	s.deps.Funder = funding.NewOrchestrator(reader, funding.NewKeyWallet(s.tx), token, s.deps.Fees.PayerAmountBig, sink, s.log)
	return nil
}

func (s *session) driver() (escrow.Driver, error) {
	return escrow.ForVersion(s.invoice.Invoice.ContractVersion, s.deps)
}

func (s *session) escrowAddress() (common.Address, error) {
	inv := s.invoice.Invoice
	if inv.EscrowAddress == nil {
		return common.Address{}, errs.New(errs.KindNotFound, "Invoice %s has no escrow yet", inv.ShortCode)
	}
	return common.HexToAddress(*inv.EscrowAddress), nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %s\n", errs.Message(err))
	return 1
}
