package issuance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckglobal/ontime-peer/internal/ledger"
	"github.com/luckglobal/ontime-peer/internal/models"
	"github.com/luckglobal/ontime-peer/internal/storage/memory"
)

func newLedger(t *testing.T) (*ledger.Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	lgr, err := ledger.Open(context.Background(), store, nil, func() string { return "LGBX_X" }, zerolog.Nop())
	require.NoError(t, err)
	return lgr, store
}

func TestSchedulerCreditsOnTick(t *testing.T) {
	lgr, _ := newLedger(t)

	s := NewScheduler(20*time.Millisecond, decimal.NewFromInt(1), "ONTIME", lgr, zerolog.Nop())
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return lgr.Balance().IntPart() >= 2
	}, 3*time.Second, 5*time.Millisecond)

	recs, err := lgr.History(context.Background(), 100)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, models.TxIssuance, recs[0].Kind)
	assert.Empty(t, recs[0].Counterparty)
	assert.Contains(t, recs[0].Details, "ONTIME issued")
}

func TestSchedulerStopPreventsFurtherTicks(t *testing.T) {
	lgr, _ := newLedger(t)

	s := NewScheduler(15*time.Millisecond, decimal.NewFromInt(1), "ONTIME", lgr, zerolog.Nop())
	s.Start()

	require.Eventually(t, func() bool {
		return !lgr.Balance().IsZero()
	}, 3*time.Second, 5*time.Millisecond)

	s.Stop()
	after := lgr.Balance()

	time.Sleep(100 * time.Millisecond)
	assert.True(t, lgr.Balance().Equal(after), "no tick may fire after Stop returns")
}

func TestSchedulerReschedulesPastFailures(t *testing.T) {
	lgr, store := newLedger(t)
	store.FailApplies(errors.New("db down"))

	s := NewScheduler(15*time.Millisecond, decimal.NewFromInt(1), "ONTIME", lgr, zerolog.Nop())
	s.Start()
	defer s.Stop()

	// let a few ticks fail, then recover the store
	time.Sleep(60 * time.Millisecond)
	assert.True(t, lgr.Balance().IsZero())
	store.FailApplies(nil)

	require.Eventually(t, func() bool {
		return !lgr.Balance().IsZero()
	}, 3*time.Second, 5*time.Millisecond, "issuance resumes on the next tick after a failure")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	lgr, _ := newLedger(t)
	s := NewScheduler(time.Hour, decimal.NewFromInt(1), "ONTIME", lgr, zerolog.Nop())
	s.Start()
	s.Stop()
	s.Stop()
}
