package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/luckglobal/ontime-peer/internal/protocol"
)

// Outcome classifies the result of one outbound send attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomePeerRejected
	OutcomeConnectionFailed
	OutcomeProtocolError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePeerRejected:
		return "peer_rejected"
	case OutcomeConnectionFailed:
		return "connection_failed"
	case OutcomeProtocolError:
		return "protocol_error"
	}
	return "unknown"
}

// SendResult is the typed outcome of Client.Send. Only OutcomeSuccess
// permits the caller to debit the local ledger.
type SendResult struct {
	Outcome Outcome
	Message string
}

// Client pushes a single transfer to a remote peer: one connect, one
// request, one response, no retries and no speculative local debit.
type Client struct {
	timeout    time.Duration
	bufferSize int
	log        zerolog.Logger
}

func NewClient(timeout time.Duration, bufferSize int, log zerolog.Logger) *Client {
	if bufferSize <= 0 {
		bufferSize = 2048
	}
	return &Client{
		timeout:    timeout,
		bufferSize: bufferSize,
		log:        log.With().Str("component", "p2p-client").Logger(),
	}
}

// Send connects to host:port, writes one encoded transfer request and
// reads exactly one response. Every failure mode maps to a SendResult;
// Send never mutates the ledger.
func (c *Client) Send(ctx context.Context, host string, port int, amount decimal.Decimal, senderAddress string) SendResult {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	log := c.log.With().Str("peer", target).Logger()
	log.Info().Stringer("amount", amount).Msg("sending transfer")

	payload, err := protocol.EncodeRequest(amount, senderAddress)
	if err != nil {
		return SendResult{Outcome: OutcomeProtocolError, Message: fmt.Sprintf("encode request: %v", err)}
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		log.Warn().Err(err).Msg("connect failed")
		return SendResult{Outcome: OutcomeConnectionFailed, Message: fmt.Sprintf("connect to %s: %v", target, err)}
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write(payload); err != nil {
		log.Warn().Err(err).Msg("write failed")
		return SendResult{Outcome: OutcomeConnectionFailed, Message: fmt.Sprintf("send to %s: %v", target, err)}
	}

	buf := make([]byte, c.bufferSize)
	n, err := conn.Read(buf)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		log.Warn().Err(err).Msg("no response from peer")
		return SendResult{Outcome: OutcomeConnectionFailed, Message: fmt.Sprintf("awaiting response from %s: %v", target, err)}
	}
	if n == 0 {
		return SendResult{Outcome: OutcomeProtocolError, Message: "peer closed connection without response"}
	}

	resp, err := protocol.DecodeResponse(buf[:n])
	if err != nil {
		log.Warn().Err(err).Msg("malformed response")
		return SendResult{Outcome: OutcomeProtocolError, Message: fmt.Sprintf("invalid response from %s", target)}
	}

	if resp.Status != protocol.StatusSuccess {
		log.Warn().Str("reason", resp.Message).Msg("peer rejected transfer")
		return SendResult{Outcome: OutcomePeerRejected, Message: resp.Message}
	}

	log.Info().Stringer("amount", amount).Msg("transfer confirmed by peer")
	return SendResult{Outcome: OutcomeSuccess, Message: resp.Message}
}
