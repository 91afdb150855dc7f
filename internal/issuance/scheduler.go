// Package issuance credits the local account on a fixed interval,
// independent of all network activity.
package issuance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/luckglobal/ontime-peer/internal/ledger"
)

// Scheduler fires at a fixed interval and applies one issuance credit
// per tick. A failed tick is reported and the next tick proceeds on
// schedule; there is no immediate retry. Stop guarantees no tick fires
// after it returns.
type Scheduler struct {
	interval time.Duration
	amount   decimal.Decimal
	details  string
	lgr      *ledger.Ledger
	log      zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewScheduler(interval time.Duration, amount decimal.Decimal, tokenName string, lgr *ledger.Ledger, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		amount:   amount,
		details:  fmt.Sprintf("%s %s issued", amount, tokenName),
		lgr:      lgr,
		log:      log.With().Str("component", "issuance").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the timer loop. Calling Start more than once is a
// no-op.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.log.Info().Dur("interval", s.interval).Stringer("amount", s.amount).Msg("issuance scheduled")
		go s.run()
	})
}

// Stop cancels the timer and waits for the loop to exit. An in-flight
// tick completes its ledger mutation before Stop returns.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.log.Info().Msg("issuance timer cancelled")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	balance, err := s.lgr.ApplyIssuance(ctx, s.amount, s.details)
	if err != nil {
		// missed issuance: wait for the next tick, no retry
		s.log.Error().Err(err).Msg("issuance failed")
		return
	}
	s.log.Info().Stringer("amount", s.amount).Stringer("balance", balance).Msg("issuance applied")
}
