package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/arc-invoice/backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testWallet = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestLoginStoresToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/wallet":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, testWallet.Hex(), body["wallet"])
			require.Equal(t, "0x0102", body["signature"])
			_, _ = w.Write([]byte(`{"token":"tok-1","wallet":"` + body["wallet"] + `"}`))
		case "/api/v1/invoices/" + uuid.Nil.String() + "/escrow":
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, zap.NewNop())
	require.NoError(t, c.Login(context.Background(), testWallet, []byte{1, 2}))
	require.NoError(t, c.AttachEscrow(context.Background(), uuid.Nil, common.Hash{}))
	require.Equal(t, "Bearer tok-1", gotAuth)
}

func TestNonceUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"data":{"nonce":"n-1","message":"sign me"}}`))
	}))
	defer srv.Close()

	ch, err := New(srv.URL+"/", zap.NewNop()).Nonce(context.Background(), testWallet)
	require.NoError(t, err)
	require.Equal(t, "n-1", ch.Nonce)
	require.Equal(t, "sign me", ch.Message)
}

func TestErrorsKeepKindAndFields(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusNotFound, errs.ErrNotFound},
		{http.StatusBadRequest, errs.ErrValidation},
		{http.StatusConflict, errs.ErrStorageConflict},
		{http.StatusForbidden, errs.ErrForbidden},
		{http.StatusBadGateway, errs.ErrOnChainCallFailure},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope","fields":[{"field":"terms_hash","message":"is required"}],"request_id":"r"}`))
			}))
			defer srv.Close()

			_, err := New(srv.URL, zap.NewNop()).Invoice(context.Background(), uuid.New())
			require.True(t, errors.Is(err, tt.target), "got %v", err)
			require.Equal(t, "nope", errs.Message(err))
			require.Len(t, errs.FieldsOf(err), 1)
		})
	}
}

func TestSignatureSinkPostsToInvoice(t *testing.T) {
	id := uuid.New()
	var got services.SignInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/invoices/"+id.String()+"/sign", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true,"data":{"already_signed":false}}`))
	}))
	defer srv.Close()

	sink := SignatureSink{Client: New(srv.URL, zap.NewNop()), InvoiceID: id}
	require.NoError(t, sink.RecordSignature(context.Background(), "0xabc", testWallet, []byte{0xde, 0xad}))
	require.Equal(t, testWallet.Hex(), got.Wallet)
	require.Equal(t, "0xabc", got.TermsHash)
	require.Equal(t, "0xdead", got.Signature)
}
