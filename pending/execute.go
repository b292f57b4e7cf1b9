package pending

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"

	"github.com/ghyeongl/pendingfs/logging"
	"github.com/ghyeongl/pendingfs/storage"
)

// ErrNoProvider is returned by Execute when called without a provider.
var ErrNoProvider = errors.New("pending: execute without a provider")

// Failure is one operation that did not commit. It stays staged.
type Failure struct {
	Op        Operation
	Status    storage.Status
	Retryable bool
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

// Report is the outcome of one Execute call.
type Report struct {
	// Succeeded lists committed operations in execution order; they have
	// been removed from the ledger.
	Succeeded []Operation
	Failed    []Failure
	// Skipped lists operations removed from the ledger before their turn.
	Skipped []Operation
	// Cancelled is set when the context stopped the batch early.
	Cancelled bool
}

// Summary renders the "N succeeded / M failed" line shown to users.
func (r *Report) Summary() string {
	msg := fmt.Sprintf("%d succeeded / %d failed", len(r.Succeeded), len(r.Failed))
	if len(r.Failed) > 0 || r.Cancelled {
		msg += ", remaining staged"
	}
	return msg
}

// Execute applies the staged operations to p in staging order, one at a
// time. Operations are snapshotted at the start; each is re-resolved by ID
// before its turn so operations removed meanwhile are skipped and operations
// staged meanwhile wait for the next call. Only successes leave the ledger.
// Cancelling ctx stops the batch after the current operation.
//
// Callers serialize their own Execute calls.
func (s *Store) Execute(ctx context.Context, p storage.Provider) (*Report, error) {
	if p == nil {
		return nil, ErrNoProvider
	}
	l := logging.Sub("engine")
	start := time.Now()
	defer func() { executeDuration.Observe(time.Since(start).Seconds()) }()

	batch := s.Operations()
	report := &Report{}
	l.Info("execute start", "ops", len(batch), "scheme", p.Scheme(), "container", p.Container())

	for _, op := range batch {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if !s.isStaged(op.OpID()) {
			report.Skipped = append(report.Skipped, op)
			recordExecuted(op.Kind(), outcomeSkipped)
			continue
		}

		if !Supports(p, op) {
			err := storage.Unimplemented(op.Kind().String())
			report.Failed = append(report.Failed, Failure{Op: op, Status: storage.StatusUnimplemented, Err: err})
			recordExecuted(op.Kind(), outcomeUnimplemented)
			l.Warn("capability missing", "op", op.String(), "need", RequiredCapability(op.Kind()).String())
			continue
		}

		err := s.call(ctx, func(ctx context.Context) error {
			return dispatch(ctx, p, op)
		})
		if err != nil {
			f := Failure{Op: op, Status: storage.StatusOf(err), Retryable: storage.IsRetryable(err), Err: err}
			report.Failed = append(report.Failed, f)
			recordExecuted(op.Kind(), outcomeFailure)
			l.Warn("operation failed", "op", op.String(), "status", f.Status.String(), "retryable", f.Retryable, "err", err)
			continue
		}

		s.commit(op.OpID())
		report.Succeeded = append(report.Succeeded, op)
		recordExecuted(op.Kind(), outcomeSuccess)
		if logging.Enabled(slog.LevelDebug) {
			l.Debug("operation committed", "op", op.String())
		}
	}

	l.Info("execute done", "succeeded", len(report.Succeeded), "failed", len(report.Failed),
		"skipped", len(report.Skipped), "cancelled", report.Cancelled, "elapsed", time.Since(start))
	return report, nil
}

func (s *Store) isStaged(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.ContainsBy(s.ops, func(op Operation) bool { return op.OpID() == id })
}

// commit removes a committed operation. History is dropped because undo
// cannot take back work already applied to the backend.
func (s *Store) commit(id string) {
	s.apply(false, func() bool {
		before := len(s.ops)
		s.ops = lo.Reject(s.ops, func(op Operation, _ int) bool { return op.OpID() == id })
		hadHistory := s.clearHistoryLocked()
		return len(s.ops) != before || hadHistory
	})
}

// call runs fn, retrying retryable failures when the store was built
// WithRetry. Panics inside fn become errors.
func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	if s.retries == 0 {
		return safeCall(ctx, fn)
	}
	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := safeCall(ctx, fn)
		if storage.IsRetryable(err) {
			logging.Sub("engine").Debug("retrying", "err", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return fn(ctx)
}

func dispatch(ctx context.Context, p storage.Provider, op Operation) error {
	switch o := op.(type) {
	case Delete:
		return p.Delete(ctx, o.URI.ProviderPath())
	case Move:
		return p.Move(ctx, o.Source.ProviderPath(), o.Dest.ProviderPath())
	case Copy:
		return p.Copy(ctx, o.Source.ProviderPath(), o.Dest.ProviderPath())
	case Rename:
		src := o.URI.Path()
		return p.Move(ctx, src, storage.JoinPath(storage.ParentPath(src), o.NewName))
	case Create:
		if o.EntryType.IsContainer() {
			return p.Mkdir(ctx, o.URI.ProviderPath())
		}
		return p.Write(ctx, o.URI.Path(), bytes.NewReader(nil))
	default:
		panic(fmt.Sprintf("pending: unknown operation %T", op))
	}
}
