// Package node wires the peer together: ledger, inbound server,
// outbound client and issuance scheduler, plus the command surface the
// external consumer drives.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/luckglobal/ontime-peer/internal/config"
	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/issuance"
	"github.com/luckglobal/ontime-peer/internal/ledger"
	"github.com/luckglobal/ontime-peer/internal/models"
	"github.com/luckglobal/ontime-peer/internal/models/events"
	"github.com/luckglobal/ontime-peer/internal/p2p"
	"github.com/luckglobal/ontime-peer/internal/wallet"
)

// Validation errors for send commands. These are rejected locally and
// never reach the network or the ledger.
var (
	ErrInvalidRecipient = errors.New("invalid recipient, use ip:port")
	ErrInvalidAmount    = errors.New("invalid amount, enter a number")
)

// Node owns one account and every activity around it.
type Node struct {
	cfg    config.Config
	lgr    *ledger.Ledger
	server *p2p.Server
	client *p2p.Client
	sched  *issuance.Scheduler
	pub    interfaces.EventPublisher
	log    zerolog.Logger

	localIP string
	sends   sync.WaitGroup
}

// New builds a node on the given store and event publisher. The wallet
// is loaded from the store or created on first run.
func New(ctx context.Context, cfg config.Config, store interfaces.LedgerStore, pub interfaces.EventPublisher, log zerolog.Logger) (*Node, error) {
	lgr, err := ledger.Open(ctx, store, pub, func() string {
		return wallet.NewAddress(cfg.AddressPrefix, cfg.AddressLength)
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	n := &Node{
		cfg:     cfg,
		lgr:     lgr,
		client:  p2p.NewClient(cfg.SocketTimeout, cfg.BufferSize, log),
		pub:     pub,
		log:     log.With().Str("component", "node").Logger(),
		localIP: wallet.LocalIP(),
	}
	n.server = p2p.NewServer(p2p.ServerConfig{
		BindAddr:   cfg.BindAddr,
		Port:       cfg.Port,
		Timeout:    cfg.SocketTimeout,
		BufferSize: cfg.BufferSize,
		MaxPayload: cfg.MaxPayload(),
		MaxConns:   cfg.MaxConns,
	}, lgr, pub, log)
	n.sched = issuance.NewScheduler(cfg.IssuanceInterval, cfg.IssuanceAmount, cfg.TokenName, lgr, log)
	return n, nil
}

// Start brings up the listener and the issuance timer. A listener bind
// failure leaves the node running in send-only mode; the failure has
// already been reported to the consumer.
func (n *Node) Start() {
	if err := n.server.Start(); err != nil {
		n.log.Warn().Err(err).Msg("continuing in send-only mode")
	}
	n.sched.Start()
}

// Shutdown stops the issuance timer, closes the listener, and waits for
// in-flight inbound handlers and outbound sends to finish. Started
// ledger mutations always complete before Shutdown returns.
func (n *Node) Shutdown() {
	n.sched.Stop()
	n.server.Stop()
	n.sends.Wait()
	n.log.Info().Msg("node stopped")
}

// Address returns the local wallet address.
func (n *Node) Address() string { return n.lgr.Address() }

// Balance returns the current balance.
func (n *Node) Balance() decimal.Decimal { return n.lgr.Balance() }

// listenerAddr is the bound inbound address, nil when receiving is
// disabled.
func (n *Node) listenerAddr() net.Addr { return n.server.Addr() }

// PeerInfo is the ip:port string other peers dial to reach this node.
func (n *Node) PeerInfo() string {
	return net.JoinHostPort(n.localIP, strconv.Itoa(n.cfg.Port))
}

// History returns up to limit transaction records, most recent first.
// A non-positive limit uses the configured default.
func (n *Node) History(ctx context.Context, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = n.cfg.HistoryLimit
	}
	return n.lgr.History(ctx, limit)
}

// InitiateSend validates a send command and, if valid, launches the
// transfer in the background. Validation failures are returned
// synchronously; no network connection is attempted and nothing is
// debited. The transfer's eventual outcome reaches the consumer as a
// send_succeeded / send_failed / ledger_inconsistency event.
func (n *Node) InitiateSend(recipient, amountStr string) error {
	host, port, err := parseRecipient(recipient)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return ErrInvalidAmount
	}
	if amount.Sign() <= 0 {
		return ledger.ErrNonPositiveAmount
	}
	if amount.GreaterThan(n.lgr.Balance()) {
		return ledger.ErrInsufficientFunds
	}

	n.sends.Add(1)
	go func() {
		defer n.sends.Done()
		n.send(host, port, amount)
	}()
	return nil
}

// send performs the network round-trip and, only after the peer has
// confirmed receipt, debits the local ledger.
func (n *Node) send(host string, port int, amount decimal.Decimal) {
	target := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(context.Background(), 2*n.cfg.SocketTimeout)
	defer cancel()

	result := n.client.Send(ctx, host, port, amount, n.lgr.Address())
	if result.Outcome != p2p.OutcomeSuccess {
		n.log.Warn().
			Str("peer", target).
			Str("outcome", result.Outcome.String()).
			Str("reason", result.Message).
			Msg("send failed")
		n.publish(events.TopicSendFailed, events.NewSendFailed(result.Message, target))
		return
	}

	if _, err := n.lgr.ApplyOutgoing(ctx, amount, "", "Sent to "+target); err != nil {
		// The peer has the funds but our debit did not persist. The two
		// ledgers now disagree; surface it loudly, do not auto-correct.
		inc := &ledger.InconsistencyError{Amount: amount, Counterparty: target, Err: err}
		n.log.Error().Err(inc).Msg("CRITICAL: peer confirmed transfer but local persistence failed")
		n.publish(events.TopicLedgerInconsistency, events.NewLedgerInconsistency(amount, target, err.Error()))
		return
	}

	n.publish(events.TopicSendSucceeded, events.NewSendSucceeded(amount, target))
}

func (n *Node) publish(topic string, event any) {
	if n.pub == nil {
		return
	}
	if err := n.pub.Publish(topic, event); err != nil {
		n.log.Warn().Err(err).Str("topic", topic).Msg("event publish failed")
	}
}

// parseRecipient splits and validates an ip:port peer string.
func parseRecipient(recipient string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(recipient)
	if err != nil || host == "" {
		return "", 0, ErrInvalidRecipient
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, ErrInvalidRecipient
	}
	return host, port, nil
}
