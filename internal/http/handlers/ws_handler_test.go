package handlers

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arc-invoice/backend/internal/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu      sync.Mutex
	msgs    [][]byte
	failing bool
	closed  bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

const (
	wsCreator = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	wsPayer   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestWSHubRoutesToNamedWalletsOnce(t *testing.T) {
	hub := NewWSHub(nil, nil, zap.NewNop())
	creator, payer, stranger := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.register(&wsClient{conn: creator, wallet: wsCreator})
	hub.register(&wsClient{conn: payer, wallet: wsPayer})
	hub.register(&wsClient{conn: stranger, wallet: "0xcccccccccccccccccccccccccccccccccccccccc"})

	// Mixed case and a duplicate recipient still deliver once per socket.
	ev := events.ForInvoice(events.EventTermsSigned, "inv-1",
		[]string{"0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", wsCreator, wsPayer}, nil)
	hub.route(ev)

	require.Len(t, creator.msgs, 1)
	require.Len(t, payer.msgs, 1)
	require.Empty(t, stranger.msgs)

	var got events.Event
	require.NoError(t, json.Unmarshal(creator.msgs[0], &got))
	require.Equal(t, events.EventTermsSigned, got.Type)
	require.Equal(t, "inv-1", got.InvoiceID())
}

func TestWSHubInvoiceFilter(t *testing.T) {
	hub := NewWSHub(nil, nil, zap.NewNop())
	all, one := &fakeConn{}, &fakeConn{}
	hub.register(&wsClient{conn: all, wallet: wsCreator})
	hub.register(&wsClient{conn: one, wallet: wsCreator, invoices: invoiceFilter(" inv-2 , ,inv-3")})

	hub.SendToWallet(wsCreator, events.ForInvoice(events.EventProofSubmitted, "inv-1", nil, nil))
	hub.SendToWallet(wsCreator, events.ForInvoice(events.EventProofSubmitted, "inv-2", nil, nil))

	require.Len(t, all.msgs, 2)
	require.Len(t, one.msgs, 1)
}

func TestWSHubClosesFailedSockets(t *testing.T) {
	hub := NewWSHub(nil, nil, zap.NewNop())
	broken := &fakeConn{failing: true}
	client := &wsClient{conn: broken, wallet: wsPayer}
	hub.register(client)

	hub.SendToWallet(wsPayer, events.ForInvoice(events.EventDisputeOpened, "inv-1", nil, nil))
	require.True(t, broken.closed)

	hub.unregister(client)
	require.Empty(t, hub.clients)
}

func TestInvoiceFilterEmpty(t *testing.T) {
	require.Nil(t, invoiceFilter(""))
}
