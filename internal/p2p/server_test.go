package p2p

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckglobal/ontime-peer/internal/ledger"
	"github.com/luckglobal/ontime-peer/internal/models"
	"github.com/luckglobal/ontime-peer/internal/protocol"
	"github.com/luckglobal/ontime-peer/internal/storage/memory"
)

func newTestServer(t *testing.T, initial string, cfg ServerConfig) (*Server, *ledger.Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.CreateAccount(context.Background(), models.Account{
		Address: "LGBX_LOCAL",
		Balance: decimal.RequireFromString(initial),
	}))
	lgr, err := ledger.Open(context.Background(), store, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1"
	}
	srv := NewServer(cfg, lgr, nil, zerolog.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv, lgr, store
}

func exchange(t *testing.T, addr net.Addr, payload []byte) protocol.TransferResponse {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	_, err = conn.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(buf[:n])
	require.NoError(t, err)
	return resp
}

func TestInboundTransferApplied(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "1.0", ServerConfig{})

	resp := exchange(t, srv.Addr(), []byte(`{"action":"transfer","amount":"2.5","sender_address":"PEER123"}`))
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "3.5", lgr.Balance().String())

	recs, err := lgr.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.TxReceived, recs[0].Kind)
	assert.Equal(t, "PEER123", recs[0].Counterparty)
}

func TestInboundFragmentedRequest(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "0", ServerConfig{})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(3 * time.Second))

	payload := []byte(`{"action":"transfer","amount":"1","sender_address":"PEER123"}`)
	_, err = conn.Write(payload[:20])
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = conn.Write(payload[20:])
	require.NoError(t, err)

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	resp, err := protocol.DecodeResponse(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
	assert.Equal(t, "1", lgr.Balance().String())
}

func TestInboundMalformedJSON(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "1.0", ServerConfig{})

	resp := exchange(t, srv.Addr(), []byte(`{this is not json}`))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "1", lgr.Balance().String())

	recs, err := lgr.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs, "malformed request must not touch the ledger")
}

func TestInboundValidationErrors(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "1.0", ServerConfig{})

	for _, raw := range []string{
		`{"action":"transfer","amount":"-5","sender_address":"PEER123"}`,
		`{"action":"transfer","amount":"abc","sender_address":"PEER123"}`,
		`{"action":"transfer","sender_address":"PEER123"}`,
		`{"action":"burn","amount":"1","sender_address":"PEER123"}`,
	} {
		resp := exchange(t, srv.Addr(), []byte(raw))
		assert.Equal(t, protocol.StatusError, resp.Status, "payload %s", raw)
	}
	assert.Equal(t, "1", lgr.Balance().String())
}

func TestInboundPayloadTooLarge(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "0", ServerConfig{BufferSize: 64, MaxPayload: 256})

	// a payload with no closing brace keeps the reader accumulating
	// until the bound trips; size it so the server consumes every byte
	// before replying
	resp := exchange(t, srv.Addr(), bytes.Repeat([]byte("x"), 320))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, ErrPayloadTooLarge.Error(), resp.Message)
	assert.True(t, lgr.Balance().IsZero())
}

func TestInboundPersistenceFailure(t *testing.T) {
	srv, lgr, store := newTestServer(t, "1.0", ServerConfig{})
	store.FailApplies(assert.AnError)

	resp := exchange(t, srv.Addr(), []byte(`{"action":"transfer","amount":"2.5","sender_address":"PEER123"}`))
	assert.Equal(t, protocol.StatusError, resp.Status)
	assert.Equal(t, "1", lgr.Balance().String(), "failed persist leaves balance unchanged")
}

func TestSlowClientTimesOutWithoutMutation(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "1.0", ServerConfig{Timeout: 150 * time.Millisecond})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// send an incomplete frame and go silent; the server must drop us
	_, err = conn.Write([]byte(`{"action":"transfer"`))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	_, err = conn.Read(buf)
	assert.Error(t, err, "connection should be closed without a response")
	assert.Equal(t, "1", lgr.Balance().String())
}

func TestBindFailureReported(t *testing.T) {
	// occupy a port first
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()
	port := blocker.Addr().(*net.TCPAddr).Port

	store := memory.NewStore()
	lgr, err := ledger.Open(context.Background(), store, nil, func() string { return "LGBX_X" }, zerolog.Nop())
	require.NoError(t, err)

	pub := &capturePub{}
	srv := NewServer(ServerConfig{BindAddr: "127.0.0.1", Port: port, Timeout: time.Second}, lgr, pub, zerolog.Nop())
	err = srv.Start()
	require.Error(t, err)
	assert.Nil(t, srv.Addr())
	assert.Equal(t, 1, pub.count("listener_bind_failed"))
}

func TestSaturatedServerStillAccepts(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "0", ServerConfig{MaxConns: 1, Timeout: 300 * time.Millisecond})

	// pin the only concurrency slot with a silent client holding an
	// incomplete frame until its timeout expires
	blocker, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer blocker.Close()
	_, err = blocker.Write([]byte(`{"action":"transfer"`))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	// further clients still get accepted and, once the slot frees,
	// served; a full slot pool must never stall the accept loop
	const clients = 3
	done := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write([]byte(`{"action":"transfer","amount":"1","sender_address":"PEER123"}`)); err != nil {
				done <- err
				return
			}
			buf := make([]byte, 1024)
			if _, err := conn.Read(buf); err != nil {
				done <- err
				return
			}
			done <- nil
		}()
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, int64(clients), lgr.Balance().IntPart())
}

func TestConcurrentInboundTransfers(t *testing.T) {
	srv, lgr, _ := newTestServer(t, "0", ServerConfig{MaxConns: 8})

	const clients = 20
	done := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func() {
			conn, err := net.Dial("tcp", srv.Addr().String())
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))
			if _, err := conn.Write([]byte(`{"action":"transfer","amount":"1","sender_address":"PEER123"}`)); err != nil {
				done <- err
				return
			}
			buf := make([]byte, 1024)
			if _, err := conn.Read(buf); err != nil {
				done <- err
				return
			}
			done <- nil
		}()
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-done)
	}

	assert.Equal(t, int64(clients), lgr.Balance().IntPart())
	recs, err := lgr.History(context.Background(), clients+1)
	require.NoError(t, err)
	assert.Len(t, recs, clients)
}
