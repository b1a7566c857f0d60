package rebase

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"rezerve/core/events"
	"rezerve/observability"
)

// ModuleAccount is the ledger account the scheduler mints into before routing
// the shares to their destinations.
const ModuleAccount = "module/rebase"

// Ledger describes the minimal functionality the scheduler needs from the
// fungible token ledger. Snapshot and RevertToSnapshot bracket the epoch
// dispatch so a failing sink never leaves a partial distribution behind.
type Ledger interface {
	Mint(account string, amount *big.Int) error
	Transfer(from, to string, amount *big.Int) error
	TotalSupply() *big.Int
	Snapshot() int
	RevertToSnapshot(id int)
}

// Treasury exposes the reserve valuation consumed by the backing ratio.
type Treasury interface {
	ReserveValue() *big.Int
}

// Sink is a destination for one share of the epoch mint. Receive is invoked
// after the share has been transferred to the sink's ledger account; a
// non-nil error aborts the whole epoch execution.
type Sink interface {
	Account() string
	Receive(amount *big.Int) error
}

// FloorSink is the burner sink. Its floor value participates in the split
// record emitted with every rebase.
type FloorSink interface {
	Sink
	FloorValue() *big.Int
}

// Record is the durable form of one epoch execution, appended to the history
// store after every successful ExecuteEpoch call.
type Record struct {
	Epoch        uint64
	ExecutedAt   int64
	APR          uint64
	Ratio        *big.Int
	EpochMint    *big.Int
	ToStakers    *big.Int
	ToOps        *big.Int
	ToBurner     *big.Int
	ReserveGuard bool
}

// Scheduler owns the epoch clock. It gates execution on the epoch boundary,
// runs the rate engine against live collaborator state and dispatches the
// resulting mint. lastEpochTime has a single writer: ExecuteEpoch.
type Scheduler struct {
	params   Params
	ledger   Ledger
	treasury Treasury
	stakers  Sink
	ops      Sink
	burner   FloorSink

	mu            sync.Mutex
	lastEpochTime int64
	epoch         uint64

	clock   func() time.Time
	emitter events.Emitter
	history func(Record) error
	logger  *slog.Logger
	metrics *observability.RebaseMetrics
}

// SchedulerOption customises scheduler construction.
type SchedulerOption func(*Scheduler)

// WithClock overrides the time source. Intended for tests and simulations.
func WithClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEmitter attaches an event emitter for rebase records.
func WithEmitter(emitter events.Emitter) SchedulerOption {
	return func(s *Scheduler) {
		if emitter != nil {
			s.emitter = emitter
		}
	}
}

// WithHistory attaches a sink for durable rebase records. Append failures are
// logged but do not fail the epoch: the ledger mutation is the source of truth.
func WithHistory(appendFn func(Record) error) SchedulerOption {
	return func(s *Scheduler) {
		if appendFn != nil {
			s.history = appendFn
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches the scheduler metrics registry.
func WithMetrics(metrics *observability.RebaseMetrics) SchedulerOption {
	return func(s *Scheduler) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewScheduler constructs an epoch scheduler over the supplied collaborators.
func NewScheduler(params Params, ledger Ledger, treasury Treasury, stakers, ops Sink, burner FloorSink, opts ...SchedulerOption) (*Scheduler, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, ErrNilLedger
	}
	if treasury == nil {
		return nil, ErrNilTreasury
	}
	if stakers == nil || ops == nil || burner == nil {
		return nil, ErrNilSink
	}
	s := &Scheduler{
		params:   params,
		ledger:   ledger,
		treasury: treasury,
		stakers:  stakers,
		ops:      ops,
		burner:   burner,
		clock:    time.Now,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the deployment-time parameter set.
func (s *Scheduler) Params() Params { return s.params }

// EpochLength returns the fixed epoch duration.
func (s *Scheduler) EpochLength() time.Duration { return s.params.EpochLength }

// LastEpochTime returns the unix timestamp of the most recent execution. It is
// zero until the first epoch has been executed.
func (s *Scheduler) LastEpochTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEpochTime
}

// Epoch returns the number of executed epochs.
func (s *Scheduler) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// CurrentBackingRatio reads the live reserve and supply values and returns the
// scaled backing ratio. Safe to call at any time.
func (s *Scheduler) CurrentBackingRatio() *big.Int {
	return BackingRatio(s.treasury.ReserveValue(), s.ledger.TotalSupply())
}

// ProjectedRate runs the rate engine against live collaborator state without
// any side effects.
func (s *Scheduler) ProjectedRate() (Result, error) {
	return s.params.ProjectedRateRaw(s.treasury.ReserveValue(), s.ledger.TotalSupply(), s.burner.FloorValue())
}

// ExecuteEpoch runs one epoch if the boundary has been reached. The readiness
// check and the lastEpochTime update happen under one lock so concurrent
// callers can never both pass the gate for the same boundary. On a dispatch
// failure the ledger is reverted and lastEpochTime keeps its previous value,
// so the epoch can be retried. The reserve guard is not a failure: it zeroes
// the mint, still advances the epoch and still emits a record.
func (s *Scheduler) ExecuteEpoch() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.clock()
	now := started.UTC().Unix()
	if now-s.lastEpochTime < s.params.epochSeconds() {
		s.metrics.RecordNotReady()
		return Record{}, ErrNotReady
	}

	reserve := s.treasury.ReserveValue()
	supply := s.ledger.TotalSupply()
	result, err := s.params.ProjectedRateRaw(reserve, supply, s.burner.FloorValue())
	if err != nil {
		return Record{}, fmt.Errorf("rebase: rate projection: %w", err)
	}

	epoch := s.epoch + 1
	guardTripped := false
	if result.EpochMint.Sign() > 0 && !reservesCoverPostMint(reserve, supply, result.EpochMint) {
		guardTripped = true
		s.emitter.Emit(events.RebaseSkipped{
			Epoch:        epoch,
			ExecutedAt:   now,
			ReserveValue: copyBigInt(reserve),
			SupplyValue:  copyBigInt(supply),
			WantedMint:   copyBigInt(result.EpochMint),
		}.Event())
		result = zeroResult(result.Ratio, result.FloorValue)
	}

	if result.EpochMint.Sign() > 0 {
		snapshot := s.ledger.Snapshot()
		if err := s.dispatch(result); err != nil {
			s.ledger.RevertToSnapshot(snapshot)
			s.metrics.RecordDispatchFailure()
			return Record{}, fmt.Errorf("rebase: dispatch: %w", err)
		}
	}

	s.lastEpochTime = now
	s.epoch = epoch

	record := Record{
		Epoch:        epoch,
		ExecutedAt:   now,
		APR:          result.APR,
		Ratio:        result.Ratio,
		EpochMint:    result.EpochMint,
		ToStakers:    result.ToStakers,
		ToOps:        result.ToOps,
		ToBurner:     result.ToBurner,
		ReserveGuard: guardTripped,
	}
	s.emitter.Emit(events.Rebased{
		Epoch:      record.Epoch,
		ExecutedAt: record.ExecutedAt,
		APR:        record.APR,
		Ratio:      copyBigInt(record.Ratio),
		EpochMint:  copyBigInt(record.EpochMint),
		ToStakers:  copyBigInt(record.ToStakers),
		ToOps:      copyBigInt(record.ToOps),
		ToBurner:   copyBigInt(record.ToBurner),
	}.Event())
	if s.history != nil {
		if err := s.history(record); err != nil {
			s.logger.Error("failed to persist rebase record",
				slog.Uint64("epoch", record.Epoch), slog.Any("error", err))
		}
	}
	s.metrics.RecordExecution(record.APR, record.EpochMint, record.Ratio, record.ReserveGuard, time.Since(started))
	s.logger.Info("epoch executed",
		slog.Uint64("epoch", record.Epoch),
		slog.Uint64("apr", record.APR),
		slog.String("epoch_mint", record.EpochMint.String()),
		slog.Bool("reserve_guard", record.ReserveGuard))
	return record, nil
}

// dispatch mints the epoch total into the module account and routes the three
// shares. Runs entirely between a ledger snapshot and either a commit or a
// revert, so partial distributions are never observable.
func (s *Scheduler) dispatch(result Result) error {
	if err := s.ledger.Mint(ModuleAccount, result.EpochMint); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	shares := []struct {
		sink   Sink
		amount *big.Int
	}{
		{s.stakers, result.ToStakers},
		{s.ops, result.ToOps},
		{s.burner, result.ToBurner},
	}
	for _, share := range shares {
		if share.amount.Sign() == 0 {
			continue
		}
		if err := s.ledger.Transfer(ModuleAccount, share.sink.Account(), share.amount); err != nil {
			return fmt.Errorf("transfer to %s: %w", share.sink.Account(), err)
		}
		if err := share.sink.Receive(share.amount); err != nil {
			return fmt.Errorf("sink %s: %w", share.sink.Account(), err)
		}
	}
	return nil
}

// reservesCoverPostMint reports whether the treasury still backs the post-mint
// supply at one hundred percent. Minting must never degrade the backing below
// that threshold.
func reservesCoverPostMint(reserve, supply, mint *big.Int) bool {
	post := new(big.Int).Add(copyBigInt(supply), mint)
	return copyBigInt(reserve).Cmp(post) >= 0
}
