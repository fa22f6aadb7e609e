package bottlebook

import (
	"context"
	"fmt"
	"strings"
)

// CustomerID identifies a customer record.
type CustomerID struct {
	value string
}

// TransactionID identifies an immutable transaction record.
type TransactionID struct {
	value string
}

// ChangeID identifies a pending-change ledger entry.
type ChangeID struct {
	value string
}

// TenantID scopes remote rows to an authenticated account.
type TenantID struct {
	value string
}

// PhoneNumber is the only locally unique customer attribute.
type PhoneNumber struct {
	value string
}

// NewCustomerID validates and normalizes a customer id.
func NewCustomerID(raw string) (CustomerID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CustomerID{}, fmt.Errorf("%w: empty value", ErrInvalidCustomerID)
	}
	return CustomerID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CustomerID) String() string {
	return id.value
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// NewChangeID validates and normalizes a change id.
func NewChangeID(raw string) (ChangeID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ChangeID{}, fmt.Errorf("%w: empty value", ErrInvalidChangeID)
	}
	return ChangeID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ChangeID) String() string {
	return id.value
}

// NewTenantID validates and normalizes a tenant id.
func NewTenantID(raw string) (TenantID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TenantID{}, fmt.Errorf("%w: empty value", ErrInvalidTenantID)
	}
	return TenantID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TenantID) String() string {
	return id.value
}

// NewPhoneNumber validates and normalizes a phone number.
// Uniqueness is equality on the normalized value.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PhoneNumber{}, fmt.Errorf("%w: empty value", ErrInvalidPhoneNumber)
	}
	return PhoneNumber{value: trimmed}, nil
}

// String returns the normalized number.
func (phone PhoneNumber) String() string {
	return phone.value
}

// TrustStatus classifies how much a customer is trusted with deposits.
type TrustStatus string

const (
	TrustApproved TrustStatus = "approved"
	TrustPending  TrustStatus = "pending"
	TrustBlocked  TrustStatus = "blocked"
)

// ParseTrustStatus validates a raw trust status.
func ParseTrustStatus(raw string) (TrustStatus, error) {
	switch TrustStatus(raw) {
	case TrustApproved, TrustPending, TrustBlocked:
		return TrustStatus(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTrustStatus, raw)
}

// String returns the status value.
func (status TrustStatus) String() string {
	return string(status)
}

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TransactionIssue  TransactionType = "issue"
	TransactionReturn TransactionType = "return"
	TransactionSettle TransactionType = "settle"
)

// ParseTransactionType validates a raw transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionIssue, TransactionReturn, TransactionSettle:
		return TransactionType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
}

// String returns the type value.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// ChangeType enumerates pending-change kinds.
type ChangeType string

const (
	ChangeAddCustomer       ChangeType = "add_customer"
	ChangeUpdateCustomer    ChangeType = "update_customer"
	ChangeDeleteCustomer    ChangeType = "delete_customer"
	ChangeAddTransaction    ChangeType = "add_transaction"
	ChangeDeleteTransaction ChangeType = "delete_transaction"
)

// ParseChangeType validates a raw change type.
func ParseChangeType(raw string) (ChangeType, error) {
	switch ChangeType(raw) {
	case ChangeAddCustomer, ChangeUpdateCustomer, ChangeDeleteCustomer, ChangeAddTransaction, ChangeDeleteTransaction:
		return ChangeType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChangeType, raw)
}

// String returns the type value.
func (changeType ChangeType) String() string {
	return string(changeType)
}

// BottleCount is a non-negative bottle quantity.
type BottleCount int

// NewBottleCount validates a bottle count.
func NewBottleCount(raw int) (BottleCount, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidBottleCount)
	}
	return BottleCount(raw), nil
}

// Int returns the raw count.
func (count BottleCount) Int() int {
	return int(count)
}

// DepositCents is a non-negative integer currency amount in cents.
type DepositCents int64

// NewDepositCents validates a deposit amount.
func NewDepositCents(raw int64) (DepositCents, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidDepositCents)
	}
	return DepositCents(raw), nil
}

// Int64 returns the raw amount.
func (amount DepositCents) Int64() int64 {
	return int64(amount)
}

// Customer is a profile plus trust classification. Balances are never
// stored on the customer; they are derived by replaying transactions.
type Customer struct {
	CustomerID        CustomerID
	Name              string
	Phone             PhoneNumber
	Address           string
	TrustStatus       TrustStatus
	LastSyncedUnixUTC *int64
}

// Dirty reports whether the customer has local state the remote store
// does not yet reflect.
func (customer Customer) Dirty() bool {
	return customer.LastSyncedUnixUTC == nil
}

// TransactionItem is one line of a multi-item transaction. DepositCents
// is the line total, not a per-unit rate.
type TransactionItem struct {
	Category     string
	Brand        string
	Size         string
	BottleCount  BottleCount
	DepositCents DepositCents
}

// Transaction is an immutable ledger line. Corrections are modeled as
// deletion plus a fresh transaction, never as an update. When Items is
// populated the summary fields are derived from Items[0] and aggregate
// totals.
type Transaction struct {
	TransactionID     TransactionID
	CustomerID        CustomerID
	Type              TransactionType
	Category          string
	Brand             string
	Size              string
	BottleCount       BottleCount
	DepositCents      DepositCents
	Items             []TransactionItem
	Notes             string
	TimestampUnixUTC  int64
	LastSyncedUnixUTC *int64

	// CustomerName is a read-time join against the customers collection.
	// It is never persisted.
	CustomerName string
}

// Dirty reports whether the transaction has not been pushed remotely.
func (transaction Transaction) Dirty() bool {
	return transaction.LastSyncedUnixUTC == nil
}

// Totals returns the bottle and deposit totals, summing Items when
// present and falling back to the summary fields otherwise.
func (transaction Transaction) Totals() (BottleCount, DepositCents) {
	if len(transaction.Items) == 0 {
		return transaction.BottleCount, transaction.DepositCents
	}
	var bottles BottleCount
	var deposit DepositCents
	for _, item := range transaction.Items {
		bottles += item.BottleCount
		deposit += item.DepositCents
	}
	return bottles, deposit
}

// ChangePayload is the closed set of pending-change payloads. The
// variant in use is determined by the change type.
type ChangePayload interface {
	isChangePayload()
}

// CustomerPayload carries a full customer snapshot for add/update.
type CustomerPayload struct {
	Customer Customer
}

func (CustomerPayload) isChangePayload() {}

// CustomerDeletePayload carries the id of a deleted customer.
type CustomerDeletePayload struct {
	CustomerID CustomerID
}

func (CustomerDeletePayload) isChangePayload() {}

// TransactionPayload carries a full transaction snapshot.
type TransactionPayload struct {
	Transaction Transaction
}

func (TransactionPayload) isChangePayload() {}

// TransactionDeletePayload carries the id of a deleted transaction.
type TransactionDeletePayload struct {
	TransactionID TransactionID
}

func (TransactionDeletePayload) isChangePayload() {}

// PendingChange is one not-yet-acknowledged local mutation. Entries are
// never deduplicated by target entity and must replay in insertion order.
type PendingChange struct {
	ChangeID       ChangeID
	Type           ChangeType
	Payload        ChangePayload
	CreatedUnixUTC int64
}

// CustomerBalances is the derived running state of a customer.
type CustomerBalances struct {
	BottlesOutstanding     BottleCount
	DepositsHeldCents      DepositCents
	LastTransactionUnixUTC *int64
}

// InventoryLine is one derived "currently out" bucket.
type InventoryLine struct {
	Category    string
	Brand       string
	Size        string
	BottleCount BottleCount
}

// Store is the persistence contract used by Service and the sync engine.
// (localstore implements this.)
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	InsertCustomer(ctx context.Context, customer Customer) error
	DeleteCustomer(ctx context.Context, customerID CustomerID) error
	UpdateCustomerTrust(ctx context.Context, customerID CustomerID, status TrustStatus) error
	GetCustomer(ctx context.Context, customerID CustomerID) (Customer, error)
	FindCustomerByPhone(ctx context.Context, phone PhoneNumber) (Customer, bool, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	InsertTransaction(ctx context.Context, transaction Transaction) error
	DeleteTransaction(ctx context.Context, transactionID TransactionID) error
	GetTransaction(ctx context.Context, transactionID TransactionID) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	// ListCustomerTransactions returns the customer's transactions
	// oldest-first, the order balance replay requires.
	ListCustomerTransactions(ctx context.Context, customerID CustomerID) ([]Transaction, error)

	AppendChange(ctx context.Context, change PendingChange) error
	// ListChanges returns all pending entries in insertion order.
	ListChanges(ctx context.Context) ([]PendingChange, error)
	RemoveChanges(ctx context.Context, changeIDs []ChangeID) error
	ClearChanges(ctx context.Context) error
	CountChanges(ctx context.Context) (int, error)

	MarkCustomerSynced(ctx context.Context, customerID CustomerID, syncedUnixUTC int64) error
	MarkTransactionSynced(ctx context.Context, transactionID TransactionID, syncedUnixUTC int64) error
	ListDirtyCustomers(ctx context.Context) ([]Customer, error)
	ListDirtyTransactions(ctx context.Context) ([]Transaction, error)
	MarkAllSynced(ctx context.Context, syncedUnixUTC int64) error

	// ReplaceAll wholesale-replaces both collections (pull/import paths).
	ReplaceAll(ctx context.Context, customers []Customer, transactions []Transaction) error

	LastSyncUnixUTC(ctx context.Context) (int64, error)
	SetLastSyncUnixUTC(ctx context.Context, syncedUnixUTC int64) error
}
