package rebase_test

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"rezerve/core/events"
	"rezerve/core/rebase"
	"rezerve/native/burner"
	"rezerve/native/ops"
	"rezerve/native/staking"
	"rezerve/native/token"
	"rezerve/native/treasury"
)

const genesisAccount = "genesis"

type harness struct {
	ledger    *token.Ledger
	treasury  *treasury.Treasury
	pool      *staking.Pool
	ops       *ops.Sink
	burner    *burner.Burner
	emitter   *events.CollectEmitter
	records   []rebase.Record
	now       time.Time
	scheduler *rebase.Scheduler
}

func unit(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), rebase.RatioUnit())
}

// newHarness wires a scheduler over live collaborators: supply minted, the
// treasury funded, and one staking position bonded.
func newHarness(t *testing.T, params rebase.Params, supply, reserve, bond *big.Int) *harness {
	t.Helper()
	h := &harness{
		ledger:   token.NewLedger(),
		treasury: treasury.New(),
		pool:     staking.NewPool("module/staking"),
		ops:      ops.NewSink("module/ops"),
		emitter:  &events.CollectEmitter{},
		now:      time.Unix(1_700_000_000, 0),
	}
	var err error
	h.burner, err = burner.New("module/burner", unit(1))
	if err != nil {
		t.Fatalf("burner: %v", err)
	}
	if supply.Sign() > 0 {
		if err := h.ledger.Mint(genesisAccount, supply); err != nil {
			t.Fatalf("genesis mint: %v", err)
		}
	}
	if reserve.Sign() > 0 {
		if err := h.treasury.Deposit("USDC", reserve); err != nil {
			t.Fatalf("treasury deposit: %v", err)
		}
	}
	if bond != nil && bond.Sign() > 0 {
		if err := h.ledger.Transfer(genesisAccount, h.pool.Account(), bond); err != nil {
			t.Fatalf("bond transfer: %v", err)
		}
		if err := h.pool.Bond("staker-0", bond); err != nil {
			t.Fatalf("bond: %v", err)
		}
	}
	h.scheduler, err = rebase.NewScheduler(params, h.ledger, h.treasury, h.pool, h.ops, h.burner,
		rebase.WithClock(func() time.Time { return h.now }),
		rebase.WithEmitter(h.emitter),
		rebase.WithHistory(func(record rebase.Record) error {
			h.records = append(h.records, record)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestExecuteEpoch_NotReadyBeforeFirstBoundary(t *testing.T) {
	params := rebase.DefaultParams()
	h := newHarness(t, params, unit(2), unit(3), unit(1))
	// The clock sits before the first notional boundary measured from zero.
	h.now = time.Unix(int64(params.EpochLength/time.Second)-1, 0)

	before := h.ledger.TotalSupply()
	if _, err := h.scheduler.ExecuteEpoch(); !errors.Is(err, rebase.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if h.ledger.TotalSupply().Cmp(before) != 0 {
		t.Fatalf("supply changed on a rejected execution")
	}
	if h.scheduler.LastEpochTime() != 0 {
		t.Fatalf("lastEpochTime advanced on a rejected execution")
	}
	if len(h.emitter.Events) != 0 {
		t.Fatalf("events emitted on a rejected execution")
	}
}

func TestExecuteEpoch_DistributesProjectedAmounts(t *testing.T) {
	h := newHarness(t, rebase.DefaultParams(), unit(2), unit(3), unit(1))

	projected, err := h.scheduler.ProjectedRate()
	if err != nil {
		t.Fatalf("projected rate: %v", err)
	}
	if projected.APR != 500 {
		t.Fatalf("expected apr 500 at 150%% backing, got %d", projected.APR)
	}

	stakersBefore := h.ledger.BalanceOf(h.pool.Account())
	opsBefore := h.ledger.BalanceOf(h.ops.Account())
	supplyBefore := h.ledger.TotalSupply()

	record, err := h.scheduler.ExecuteEpoch()
	if err != nil {
		t.Fatalf("execute epoch: %v", err)
	}
	if record.APR != projected.APR || record.EpochMint.Cmp(projected.EpochMint) != 0 {
		t.Fatalf("executed amounts diverge from projection: record=%+v projected=%+v", record, projected)
	}

	wantSupply := new(big.Int).Add(supplyBefore, projected.EpochMint)
	if h.ledger.TotalSupply().Cmp(wantSupply) != 0 {
		t.Fatalf("supply: got %s want %s", h.ledger.TotalSupply(), wantSupply)
	}
	wantStakers := new(big.Int).Add(stakersBefore, projected.ToStakers)
	if h.ledger.BalanceOf(h.pool.Account()).Cmp(wantStakers) != 0 {
		t.Fatalf("staking balance: got %s want %s", h.ledger.BalanceOf(h.pool.Account()), wantStakers)
	}
	wantOps := new(big.Int).Add(opsBefore, projected.ToOps)
	if h.ledger.BalanceOf(h.ops.Account()).Cmp(wantOps) != 0 {
		t.Fatalf("ops balance: got %s want %s", h.ledger.BalanceOf(h.ops.Account()), wantOps)
	}
	if h.burner.TotalReceived().Cmp(projected.ToBurner) != 0 {
		t.Fatalf("burner received: got %s want %s", h.burner.TotalReceived(), projected.ToBurner)
	}

	if len(h.emitter.Events) != 1 || h.emitter.Events[0].Type != events.TypeRebased {
		t.Fatalf("expected a single rebase event, got %+v", h.emitter.Events)
	}
	if len(h.records) != 1 || h.records[0].Epoch != 1 {
		t.Fatalf("expected one persisted record for epoch 1, got %+v", h.records)
	}
}

func TestExecuteEpoch_GateReclosesAfterExecution(t *testing.T) {
	params := rebase.DefaultParams()
	h := newHarness(t, params, unit(2), unit(3), unit(1))

	if _, err := h.scheduler.ExecuteEpoch(); err != nil {
		t.Fatalf("first execution: %v", err)
	}
	if _, err := h.scheduler.ExecuteEpoch(); !errors.Is(err, rebase.ErrNotReady) {
		t.Fatalf("expected ErrNotReady immediately after execution, got %v", err)
	}
	h.advance(params.EpochLength - time.Second)
	if _, err := h.scheduler.ExecuteEpoch(); !errors.Is(err, rebase.ErrNotReady) {
		t.Fatalf("expected ErrNotReady one second before the boundary, got %v", err)
	}
	h.advance(time.Second)
	if _, err := h.scheduler.ExecuteEpoch(); err != nil {
		t.Fatalf("expected success at the boundary, got %v", err)
	}
}

func TestExecuteEpoch_ZeroMintWithoutExcessBacking(t *testing.T) {
	// Reserve equals supply: 100% backing, no excess, nothing to mint. The
	// epoch still executes and still emits a record.
	h := newHarness(t, rebase.DefaultParams(), unit(2), unit(2), unit(1))

	stakersBefore := h.ledger.BalanceOf(h.pool.Account())
	record, err := h.scheduler.ExecuteEpoch()
	if err != nil {
		t.Fatalf("execute epoch: %v", err)
	}
	if record.EpochMint.Sign() != 0 || record.APR != 0 {
		t.Fatalf("expected zero mint at exact backing, got %+v", record)
	}
	if h.ledger.BalanceOf(h.pool.Account()).Cmp(stakersBefore) != 0 {
		t.Fatalf("staking balance changed on a zero-mint epoch")
	}
	if h.scheduler.LastEpochTime() == 0 {
		t.Fatalf("zero-mint epoch must still advance the boundary")
	}
	if len(h.emitter.Events) != 1 || h.emitter.Events[0].Type != events.TypeRebased {
		t.Fatalf("zero-mint epoch must still emit a rebase record")
	}
}

func TestExecuteEpoch_ReserveGuardForcesZeroMint(t *testing.T) {
	// An aggressive test curve with a one-year epoch and a high ceiling makes
	// the projected mint exceed the excess reserve, so the post-mint backing
	// would drop below 100% and the guard must zero the distribution.
	params := rebase.Params{
		EpochLength: 365 * 24 * time.Hour,
		CeilAPR:     1_000_000,
		CurveQuad:   500,
		CurveLin:    750,
		StakerSplit: 8500,
		OpsSplit:    500,
		BurnerSplit: 1000,
	}
	h := newHarness(t, params, unit(1), unit(21), unit(1))

	projected, err := h.scheduler.ProjectedRate()
	if err != nil {
		t.Fatalf("projected rate: %v", err)
	}
	post := new(big.Int).Add(h.ledger.TotalSupply(), projected.EpochMint)
	if h.treasury.ReserveValue().Cmp(post) >= 0 {
		t.Fatalf("test setup must make the projected mint outgrow the reserve")
	}

	supplyBefore := h.ledger.TotalSupply()
	record, err := h.scheduler.ExecuteEpoch()
	if err != nil {
		t.Fatalf("execute epoch: %v", err)
	}
	if !record.ReserveGuard {
		t.Fatalf("expected the reserve guard to trip")
	}
	if record.EpochMint.Sign() != 0 || record.ToStakers.Sign() != 0 || record.ToOps.Sign() != 0 || record.ToBurner.Sign() != 0 {
		t.Fatalf("guard must zero every amount, got %+v", record)
	}
	if h.ledger.TotalSupply().Cmp(supplyBefore) != 0 {
		t.Fatalf("supply changed on a guarded epoch")
	}
	if h.scheduler.LastEpochTime() == 0 {
		t.Fatalf("guarded epoch must still advance the boundary")
	}
	var sawGuard, sawRebase bool
	for _, evt := range h.emitter.Events {
		switch evt.Type {
		case events.TypeRebaseSkipped:
			sawGuard = true
		case events.TypeRebased:
			sawRebase = true
		}
	}
	if !sawGuard || !sawRebase {
		t.Fatalf("expected both guard and rebase events, got %+v", h.emitter.Events)
	}
}

func TestExecuteEpoch_DispatchFailureRollsBack(t *testing.T) {
	// An empty staking pool rejects reward deposits, which must abort the
	// whole epoch: no minted supply, no partial transfers, boundary unchanged.
	h := newHarness(t, rebase.DefaultParams(), unit(2), unit(3), nil)

	supplyBefore := h.ledger.TotalSupply()
	opsBefore := h.ledger.BalanceOf(h.ops.Account())

	_, err := h.scheduler.ExecuteEpoch()
	if err == nil {
		t.Fatalf("expected dispatch failure with no bonded stake")
	}
	if !errors.Is(err, staking.ErrNoBondedStake) {
		t.Fatalf("expected staking rejection in the error chain, got %v", err)
	}
	if h.ledger.TotalSupply().Cmp(supplyBefore) != 0 {
		t.Fatalf("supply leaked on a failed dispatch: got %s want %s", h.ledger.TotalSupply(), supplyBefore)
	}
	if h.ledger.BalanceOf(h.pool.Account()).Sign() != 0 {
		t.Fatalf("staking balance leaked on a failed dispatch")
	}
	if h.ledger.BalanceOf(h.ops.Account()).Cmp(opsBefore) != 0 {
		t.Fatalf("ops balance leaked on a failed dispatch")
	}
	if h.scheduler.LastEpochTime() != 0 {
		t.Fatalf("boundary advanced on a failed dispatch")
	}
	if len(h.records) != 0 {
		t.Fatalf("record persisted for a failed dispatch")
	}
}

func TestExecuteEpoch_SingleWinnerUnderContention(t *testing.T) {
	h := newHarness(t, rebase.DefaultParams(), unit(2), unit(3), unit(1))

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		notReady  int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := h.scheduler.ExecuteEpoch()
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, rebase.ErrNotReady):
				notReady++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	if notReady != callers-1 {
		t.Fatalf("expected %d not-ready rejections, got %d", callers-1, notReady)
	}
	if h.scheduler.Epoch() != 1 {
		t.Fatalf("expected exactly one executed epoch, got %d", h.scheduler.Epoch())
	}
}
