package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"go.uber.org/zap"
)

// Engine drains the pending-change ledger against the remote store and
// carries the bulk bootstrap push/pull paths. All three paths are
// serialized behind one in-flight guard: concurrent drains racing on
// the same ledger is the primary shared-state hazard here.
type Engine struct {
	store   bottlebook.Store
	remote  RemoteStore
	session SessionProvider
	monitor *Monitor
	nowFn   func() int64
	logger  *zap.Logger

	syncMu sync.Mutex
}

// EngineOption configures an Engine instance.
type EngineOption func(*Engine)

// WithEngineLogger wires a zap logger for drain diagnostics.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}

// NewEngine wires an Engine. The remote store may be nil, in which case
// every remote-facing operation fails fast with ErrRemoteNotConfigured
// so the UI can present "not configured" rather than "offline".
func NewEngine(store bottlebook.Store, remote RemoteStore, session SessionProvider, monitor *Monitor, now func() int64, options ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidEngineConfig)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session dependency is nil", ErrInvalidEngineConfig)
	}
	if monitor == nil {
		return nil, fmt.Errorf("%w: monitor dependency is nil", ErrInvalidEngineConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidEngineConfig)
	}
	engine := &Engine{
		store:   store,
		remote:  remote,
		session: session,
		monitor: monitor,
		nowFn:   now,
	}
	for _, option := range options {
		if option != nil {
			option(engine)
		}
	}
	return engine, nil
}

// TriggerSync drains the pending-change ledger in insertion order.
// Per-entry success and failure are independent: a failed entry stays
// in the ledger for the next trigger without blocking entries that
// already succeeded. Retry policy is external; there is no backoff here.
func (engine *Engine) TriggerSync(ctx context.Context) (Report, error) {
	if engine.remote == nil {
		return Report{}, ErrRemoteNotConfigured
	}
	if !engine.syncMu.TryLock() {
		return Report{}, ErrSyncInProgress
	}
	defer engine.syncMu.Unlock()

	tenantID, err := engine.session.TenantID(ctx)
	if err != nil {
		return Report{}, err
	}
	changes, err := engine.store.ListChanges(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(changes) == 0 {
		return Report{Outcome: OutcomeNothingToSync}, nil
	}

	engine.monitor.beginSync()
	report := Report{}
	unreachable := false
	for _, change := range changes {
		if unreachable {
			break
		}
		if err := engine.applyChange(ctx, tenantID, change); err != nil {
			if errors.Is(err, ErrRemoteUnreachable) {
				unreachable = true
				continue
			}
			report.Failed++
			if engine.logger != nil {
				engine.logger.Warn("pending change rejected",
					zap.String("change_id", change.ChangeID.String()),
					zap.String("change_type", change.Type.String()),
					zap.Error(err),
				)
			}
			continue
		}
		report.Applied++
	}
	report.Remaining = len(changes) - report.Applied

	switch {
	case unreachable:
		report.Outcome = OutcomeOffline
		engine.monitor.finishSync(StatusOffline, 0)
	case report.Failed > 0:
		report.Outcome = OutcomePartial
		engine.monitor.finishSync(StatusError, 0)
	default:
		report.Outcome = OutcomeCompleted
		completed := engine.nowFn()
		if err := engine.store.SetLastSyncUnixUTC(ctx, completed); err != nil {
			// The monitor must always leave syncing: probes are skipped
			// while a sync is in flight.
			engine.monitor.finishSync(StatusError, 0)
			return report, err
		}
		engine.monitor.finishSync(StatusOnline, completed)
	}
	return report, nil
}

// PushAll is the bulk bootstrap path: it pushes every dirty entity in
// one pass and, distinctively, clears the whole pending ledger on
// success, since a full push supersedes any queued incremental deltas.
func (engine *Engine) PushAll(ctx context.Context) (Report, error) {
	if engine.remote == nil {
		return Report{}, ErrRemoteNotConfigured
	}
	if !engine.syncMu.TryLock() {
		return Report{}, ErrSyncInProgress
	}
	defer engine.syncMu.Unlock()

	tenantID, err := engine.session.TenantID(ctx)
	if err != nil {
		return Report{}, err
	}
	customers, err := engine.store.ListCustomers(ctx)
	if err != nil {
		return Report{}, err
	}
	transactions, err := engine.store.ListTransactions(ctx)
	if err != nil {
		return Report{}, err
	}
	if len(customers) == 0 && len(transactions) == 0 {
		return Report{}, ErrNoDataToSync
	}
	dirtyCustomers := filterDirtyCustomers(customers)
	dirtyTransactions := filterDirtyTransactions(transactions)
	if len(dirtyCustomers) == 0 && len(dirtyTransactions) == 0 {
		return Report{Outcome: OutcomeNothingToSync}, nil
	}

	engine.monitor.beginSync()
	if len(dirtyCustomers) > 0 {
		if err := engine.remote.UpsertCustomers(ctx, tenantID, dirtyCustomers); err != nil {
			return engine.failBulk(err)
		}
	}
	if len(dirtyTransactions) > 0 {
		if err := engine.remote.UpsertTransactions(ctx, tenantID, dirtyTransactions); err != nil {
			return engine.failBulk(err)
		}
	}

	completed := engine.nowFn()
	err = engine.store.WithTx(ctx, func(ctx context.Context, transactionStore bottlebook.Store) error {
		if err := transactionStore.MarkAllSynced(ctx, completed); err != nil {
			return err
		}
		if err := transactionStore.ClearChanges(ctx); err != nil {
			return err
		}
		return transactionStore.SetLastSyncUnixUTC(ctx, completed)
	})
	if err != nil {
		engine.monitor.finishSync(StatusError, 0)
		return Report{Outcome: OutcomePartial}, err
	}
	engine.monitor.finishSync(StatusOnline, completed)
	return Report{
		Outcome: OutcomeCompleted,
		Applied: len(dirtyCustomers) + len(dirtyTransactions),
	}, nil
}

// PullAll fetches the full remote collections, stamped as freshly
// synced. It does not merge and does not write: the caller applies the
// result as an authoritative overwrite (Store.ReplaceAll) after warning
// the user.
func (engine *Engine) PullAll(ctx context.Context) ([]bottlebook.Customer, []bottlebook.Transaction, error) {
	if engine.remote == nil {
		return nil, nil, ErrRemoteNotConfigured
	}
	if !engine.syncMu.TryLock() {
		return nil, nil, ErrSyncInProgress
	}
	defer engine.syncMu.Unlock()

	tenantID, err := engine.session.TenantID(ctx)
	if err != nil {
		return nil, nil, err
	}
	customers, err := engine.remote.FetchCustomers(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	transactions, err := engine.remote.FetchTransactions(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	pulled := engine.nowFn()
	for index := range customers {
		stamp := pulled
		customers[index].LastSyncedUnixUTC = &stamp
	}
	for index := range transactions {
		stamp := pulled
		transactions[index].LastSyncedUnixUTC = &stamp
		transactions[index].CustomerName = ""
	}
	return customers, transactions, nil
}

func (engine *Engine) applyChange(ctx context.Context, tenantID bottlebook.TenantID, change bottlebook.PendingChange) error {
	switch payload := change.Payload.(type) {
	case bottlebook.CustomerPayload:
		if err := engine.remote.UpsertCustomers(ctx, tenantID, []bottlebook.Customer{payload.Customer}); err != nil {
			return err
		}
		// Ledger removal and the dirty-marker stamp commit together. A
		// half-applied entry would make reports lie about what the next
		// trigger retries.
		return engine.store.WithTx(ctx, func(ctx context.Context, transactionStore bottlebook.Store) error {
			if err := transactionStore.RemoveChanges(ctx, []bottlebook.ChangeID{change.ChangeID}); err != nil {
				return err
			}
			return transactionStore.MarkCustomerSynced(ctx, payload.Customer.CustomerID, engine.nowFn())
		})
	case bottlebook.CustomerDeletePayload:
		if err := engine.remote.DeleteCustomer(ctx, tenantID, payload.CustomerID); err != nil {
			return err
		}
		return engine.store.RemoveChanges(ctx, []bottlebook.ChangeID{change.ChangeID})
	case bottlebook.TransactionPayload:
		if err := engine.remote.UpsertTransactions(ctx, tenantID, []bottlebook.Transaction{payload.Transaction}); err != nil {
			return err
		}
		return engine.store.WithTx(ctx, func(ctx context.Context, transactionStore bottlebook.Store) error {
			if err := transactionStore.RemoveChanges(ctx, []bottlebook.ChangeID{change.ChangeID}); err != nil {
				return err
			}
			return transactionStore.MarkTransactionSynced(ctx, payload.Transaction.TransactionID, engine.nowFn())
		})
	case bottlebook.TransactionDeletePayload:
		if err := engine.remote.DeleteTransaction(ctx, tenantID, payload.TransactionID); err != nil {
			return err
		}
		return engine.store.RemoveChanges(ctx, []bottlebook.ChangeID{change.ChangeID})
	}
	return fmt.Errorf("%w: %q", bottlebook.ErrInvalidChangeType, change.Type)
}

func (engine *Engine) failBulk(err error) (Report, error) {
	if errors.Is(err, ErrRemoteUnreachable) {
		engine.monitor.finishSync(StatusOffline, 0)
		return Report{Outcome: OutcomeOffline}, err
	}
	engine.monitor.finishSync(StatusError, 0)
	return Report{Outcome: OutcomePartial}, err
}

func filterDirtyCustomers(customers []bottlebook.Customer) []bottlebook.Customer {
	dirty := make([]bottlebook.Customer, 0, len(customers))
	for _, customer := range customers {
		if customer.Dirty() {
			dirty = append(dirty, customer)
		}
	}
	return dirty
}

func filterDirtyTransactions(transactions []bottlebook.Transaction) []bottlebook.Transaction {
	dirty := make([]bottlebook.Transaction, 0, len(transactions))
	for _, transaction := range transactions {
		if transaction.Dirty() {
			transaction.CustomerName = ""
			dirty = append(dirty, transaction)
		}
	}
	return dirty
}
