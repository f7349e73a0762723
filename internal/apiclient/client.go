// Package apiclient is the HTTP client escrowctl uses to talk to the API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arc-invoice/backend/internal/chain"
	"github.com/arc-invoice/backend/internal/dispute"
	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/http/dto"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	log        *zap.Logger
}

func New(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) { c.token = token }

type envelope struct {
	OK   bool            `json:"ok"`
	Data json.RawMessage `json:"data"`
}

func kindForStatus(status int) errs.Kind {
	switch status {
	case http.StatusUnauthorized:
		return errs.KindUnauthorized
	case http.StatusForbidden:
		return errs.KindForbidden
	case http.StatusNotFound:
		return errs.KindNotFound
	case http.StatusBadRequest:
		return errs.KindValidation
	case http.StatusConflict:
		return errs.KindStorageConflict
	case http.StatusBadGateway:
		return errs.KindOnChainCallFailure
	case http.StatusTooManyRequests:
		return errs.KindBusy
	}
	return ""
}

// do sends body as JSON and decodes the response into out. When unwrap is
// set the payload is taken from the {"ok","data"} envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out any, unwrap bool) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e dto.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		c.log.Debug("api error", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.String("request_id", e.RequestID))
		kind := kindForStatus(resp.StatusCode)
		if kind == "" {
			return fmt.Errorf("api returned %d: %s", resp.StatusCode, e.Error)
		}
		return &errs.Error{Kind: kind, Message: e.Error, Fields: e.Fields}
	}

	if out == nil {
		return nil
	}
	if !unwrap {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) Nonce(ctx context.Context, wallet common.Address) (*services.LoginChallenge, error) {
	var ch services.LoginChallenge
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/nonce", dto.AuthNonceRequest{Wallet: wallet.Hex()}, &ch, true)
	return &ch, err
}

// Login exchanges a signed challenge for a session token and keeps it.
func (c *Client) Login(ctx context.Context, wallet common.Address, signature []byte) error {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/wallet", dto.AuthWalletRequest{
		Wallet:    wallet.Hex(),
		Signature: hexutil.Encode(signature),
	}, &resp, false)
	if err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

func (c *Client) Invoice(ctx context.Context, id uuid.UUID) (*dto.InvoiceDetailsResponse, error) {
	var out dto.InvoiceDetailsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/invoices/"+id.String(), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Sign(ctx context.Context, id uuid.UUID, in services.SignInput) (*services.SignatureResult, error) {
	var out services.SignatureResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/invoices/"+id.String()+"/sign", in, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AttachEscrow(ctx context.Context, id uuid.UUID, txHash common.Hash) error {
	return c.do(ctx, http.MethodPost, "/api/v1/invoices/"+id.String()+"/escrow",
		dto.AttachEscrowRequest{TxHash: txHash.Hex()}, nil, false)
}

func (c *Client) MarkMilestoneFunded(ctx context.Context, invoiceID, milestoneID uuid.UUID) error {
	status := "funded"
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/invoices/%s/milestones/%s", invoiceID, milestoneID),
		dto.UpdateMilestoneRequest{Status: &status}, nil, false)
}

// OpenedDispute is the open-dispute response.
type OpenedDispute struct {
	Dispute *dto.DisputeResponse `json:"dispute"`
	Call    *chain.PreparedCall  `json:"call"`
}

func (c *Client) OpenDispute(ctx context.Context, id uuid.UUID, req dispute.OpenRequest) (*OpenedDispute, error) {
	var out OpenedDispute
	if err := c.do(ctx, http.MethodPost, "/api/v1/invoices/"+id.String()+"/disputes", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignatureSink records the payer's terms signature for one invoice.
type SignatureSink struct {
	Client    *Client
	InvoiceID uuid.UUID
}

func (s SignatureSink) RecordSignature(ctx context.Context, termsHash string, wallet common.Address, signature []byte) error {
	_, err := s.Client.Sign(ctx, s.InvoiceID, services.SignInput{
		Wallet:    wallet.Hex(),
		TermsHash: termsHash,
		Signature: hexutil.Encode(signature),
	})
	return err
}
