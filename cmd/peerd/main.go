// peerd runs a single ledger peer: it maintains one wallet, credits it
// on the issuance schedule, accepts transfers from other peers, and
// exposes a small stdin command surface (balance / history / send).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/luckglobal/ontime-peer/internal/config"
	"github.com/luckglobal/ontime-peer/internal/events"
	"github.com/luckglobal/ontime-peer/internal/events/kafka"
	interfaces "github.com/luckglobal/ontime-peer/internal/interfaces"
	"github.com/luckglobal/ontime-peer/internal/node"
	"github.com/luckglobal/ontime-peer/internal/storage/memory"
	"github.com/luckglobal/ontime-peer/internal/storage/postgres"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var store interfaces.LedgerStore
	if cfg.DatabaseURL != "" {
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("database unavailable")
		}
		defer pg.Close()
		store = pg
		log.Info().Msg("using postgres store")
	} else {
		store = memory.NewStore()
		log.Warn().Msg("no DATABASE_URL set, using in-memory store (state is lost on exit)")
	}

	bus := events.NewBus(128)
	sinks := []interfaces.EventPublisher{bus, events.NewLogPublisher(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		sinks = append(sinks, kp)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka event sink enabled")
	}
	pub := events.NewFanout(sinks...)

	n, err := node.New(ctx, cfg, store, pub, log)
	if err != nil {
		log.Fatal().Err(err).Msg("node startup failed")
	}
	n.Start()

	fmt.Printf("wallet address: %s\n", n.Address())
	fmt.Printf("peer info:      %s\n", n.PeerInfo())
	fmt.Printf("balance:        %s %s\n", n.Balance(), cfg.TokenName)
	fmt.Println("commands: balance | history | send <ip:port> <amount> | quit")

	// consumer loop: mirror events to stdout the way the original UI
	// mirrored them into its log pane
	go func() {
		for ev := range bus.Events() {
			fmt.Printf("[%s] %+v\n", ev.Topic, ev.Payload)
		}
	}()

	quit := make(chan struct{})
	go commandLoop(n, cfg, quit)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-quit:
	}

	log.Info().Msg("shutting down")
	n.Shutdown()
	bus.Close()
}

func commandLoop(n *node.Node, cfg config.Config, quit chan<- struct{}) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "balance":
			fmt.Printf("balance: %s %s\n", n.Balance(), cfg.TokenName)
		case "history":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			recs, err := n.History(ctx, 0)
			cancel()
			if err != nil {
				fmt.Printf("history error: %v\n", err)
				continue
			}
			for _, r := range recs {
				fmt.Printf("%4d  %s  %-8s  %12s  balance=%s  %s\n",
					r.ID, r.Timestamp.Format(time.RFC3339), r.Kind, r.Amount, r.BalanceAfter, r.Details)
			}
		case "send":
			if len(fields) != 3 {
				fmt.Println("usage: send <ip:port> <amount>")
				continue
			}
			if err := n.InitiateSend(fields[1], fields[2]); err != nil {
				fmt.Printf("send rejected: %v\n", err)
				continue
			}
			fmt.Println("send started, outcome will be reported")
		case "quit", "exit":
			close(quit)
			return
		default:
			fmt.Println("commands: balance | history | send <ip:port> <amount> | quit")
		}
	}
	close(quit)
}
