package cloudsync

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
)

// Sync-level error values.
var (
	ErrRemoteNotConfigured  = errors.New("remote store not configured")
	ErrRemoteUnreachable    = errors.New("remote store unreachable")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrSyncInProgress       = errors.New("sync already in progress")
	ErrNoDataToSync         = errors.New("no data to sync")
	ErrInvalidEngineConfig  = errors.New("invalid engine config")
	ErrInvalidMonitorConfig = errors.New("invalid monitor config")
)

// Status is the connectivity state exposed to the UI layer. It tracks
// reachability of the remote store, not the operating system's idea of
// network availability.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// String returns the status value.
func (status Status) String() string {
	return string(status)
}

// Outcome distinguishes "nothing to do" from genuine success, partial
// failure, and unreachability.
type Outcome string

const (
	OutcomeNothingToSync Outcome = "nothing_to_sync"
	OutcomeCompleted     Outcome = "completed"
	OutcomePartial       Outcome = "partial"
	OutcomeOffline       Outcome = "offline"
)

// Report summarizes one drain or bulk-push pass.
type Report struct {
	Outcome   Outcome
	Applied   int
	Failed    int
	Remaining int
}

// RemoteStore is the remote collaborator contract. Every write is
// scoped by the authenticated tenant id; the engine never issues an
// unscoped write. Implementations map connection-class failures to
// ErrRemoteUnreachable so the engine can tell "offline" from "rejected".
type RemoteStore interface {
	// Probe is a cheap existence query used for reachability checks.
	Probe(ctx context.Context) error

	UpsertCustomers(ctx context.Context, tenantID bottlebook.TenantID, customers []bottlebook.Customer) error
	UpsertTransactions(ctx context.Context, tenantID bottlebook.TenantID, transactions []bottlebook.Transaction) error
	DeleteCustomer(ctx context.Context, tenantID bottlebook.TenantID, customerID bottlebook.CustomerID) error
	DeleteTransaction(ctx context.Context, tenantID bottlebook.TenantID, transactionID bottlebook.TransactionID) error

	FetchCustomers(ctx context.Context, tenantID bottlebook.TenantID) ([]bottlebook.Customer, error)
	FetchTransactions(ctx context.Context, tenantID bottlebook.TenantID) ([]bottlebook.Transaction, error)
}

// SessionProvider resolves the authenticated tenant for the active
// session, or ErrNotAuthenticated when there is none.
type SessionProvider interface {
	TenantID(ctx context.Context) (bottlebook.TenantID, error)
}
