package bottlebook

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Service contains the domain logic over a Store. Every mutation
// persists the entity and appends the matching pending change inside a
// single store transaction, so a committed local write always has a
// ledger record.
type Service struct {
	store       Store
	nowFn       func() int64
	newChangeID func() string
	logger      OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, newChangeID: uuid.NewString}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// AddCustomer stores a new customer and enqueues the change. Phone
// uniqueness is the only constraint enforced locally.
func (service *Service) AddCustomer(ctx context.Context, customer Customer) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		_, exists, err := transactionStore.FindCustomerByPhone(ctx, customer.Phone)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicatePhone
		}
		if err := transactionStore.InsertCustomer(ctx, customer); err != nil {
			return err
		}
		return service.appendChange(ctx, transactionStore, ChangeAddCustomer, CustomerPayload{Customer: customer})
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationAddCustomer,
		CustomerID: customer.CustomerID,
		Error:      operationError,
	})
	return operationError
}

// DeleteCustomer removes a customer and enqueues the deletion. The
// customer's transaction log is kept for audit.
func (service *Service) DeleteCustomer(ctx context.Context, customerID CustomerID) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		if _, err := transactionStore.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		if err := transactionStore.DeleteCustomer(ctx, customerID); err != nil {
			return err
		}
		return service.appendChange(ctx, transactionStore, ChangeDeleteCustomer, CustomerDeletePayload{CustomerID: customerID})
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationDeleteCustomer,
		CustomerID: customerID,
		Error:      operationError,
	})
	return operationError
}

// UpdateCustomerTrustStatus changes the trust classification and
// enqueues an update carrying the refreshed snapshot.
func (service *Service) UpdateCustomerTrustStatus(ctx context.Context, customerID CustomerID, status TrustStatus) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		customer, err := transactionStore.GetCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		if err := transactionStore.UpdateCustomerTrust(ctx, customerID, status); err != nil {
			return err
		}
		customer.TrustStatus = status
		customer.LastSyncedUnixUTC = nil
		return service.appendChange(ctx, transactionStore, ChangeUpdateCustomer, CustomerPayload{Customer: customer})
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationUpdateTrustStatus,
		CustomerID: customerID,
		Error:      operationError,
	})
	return operationError
}

// AddTransaction appends an immutable transaction to the customer's
// log. Summary fields are normalized from the line items when present;
// a missing deposit is computed from the static rate table; a return of
// more bottles than are outstanding is rejected.
func (service *Service) AddTransaction(ctx context.Context, transaction Transaction) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		customer, err := transactionStore.GetCustomer(ctx, transaction.CustomerID)
		if err != nil {
			return err
		}
		transaction = normalizeTransaction(transaction, customer.TrustStatus)
		if transaction.Type == TransactionReturn {
			history, err := transactionStore.ListCustomerTransactions(ctx, transaction.CustomerID)
			if err != nil {
				return err
			}
			balances := ReplayBalances(history)
			bottles, _ := transaction.Totals()
			if bottles > balances.BottlesOutstanding {
				return ErrInsufficientOutstanding
			}
		}
		if transaction.TimestampUnixUTC == 0 {
			transaction.TimestampUnixUTC = service.nowFn()
		}
		transaction.CustomerName = ""
		transaction.LastSyncedUnixUTC = nil
		if err := transactionStore.InsertTransaction(ctx, transaction); err != nil {
			return err
		}
		return service.appendChange(ctx, transactionStore, ChangeAddTransaction, TransactionPayload{Transaction: transaction})
	})
	bottles, deposit := transaction.Totals()
	service.logOperation(ctx, OperationLog{
		Operation:     operationAddTransaction,
		CustomerID:    transaction.CustomerID,
		TransactionID: transaction.TransactionID,
		Bottles:       bottles,
		Deposit:       deposit,
		Error:         operationError,
	})
	return operationError
}

// DeleteTransaction removes a transaction from the log and enqueues the
// deletion. Balances self-correct on the next replay.
func (service *Service) DeleteTransaction(ctx context.Context, transactionID TransactionID) error {
	var removed Transaction
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		transaction, err := transactionStore.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}
		removed = transaction
		if err := transactionStore.DeleteTransaction(ctx, transactionID); err != nil {
			return err
		}
		return service.appendChange(ctx, transactionStore, ChangeDeleteTransaction, TransactionDeletePayload{TransactionID: transactionID})
	})
	service.logOperation(ctx, OperationLog{
		Operation:     operationDeleteTransaction,
		CustomerID:    removed.CustomerID,
		TransactionID: transactionID,
		Error:         operationError,
	})
	return operationError
}

// Customers lists all customers.
func (service *Service) Customers(ctx context.Context) ([]Customer, error) {
	return service.store.ListCustomers(ctx)
}

// CustomerByID fetches one customer.
func (service *Service) CustomerByID(ctx context.Context, customerID CustomerID) (Customer, error) {
	return service.store.GetCustomer(ctx, customerID)
}

// Transactions lists every transaction with the customer name resolved
// against the current customers collection. The join is read-time
// denormalization and never persisted.
func (service *Service) Transactions(ctx context.Context) ([]Transaction, error) {
	transactions, err := service.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := service.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[CustomerID]string, len(customers))
	for _, customer := range customers {
		names[customer.CustomerID] = customer.Name
	}
	for index := range transactions {
		transactions[index].CustomerName = names[transactions[index].CustomerID]
	}
	return transactions, nil
}

// CustomerTransactions lists one customer's transactions newest-first.
func (service *Service) CustomerTransactions(ctx context.Context, customerID CustomerID) ([]Transaction, error) {
	transactions, err := service.store.ListCustomerTransactions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(transactions, func(left, right int) bool {
		return transactions[left].TimestampUnixUTC > transactions[right].TimestampUnixUTC
	})
	return transactions, nil
}

// CustomerBalances derives the customer's running balances by replaying
// their transaction log oldest-first.
func (service *Service) CustomerBalances(ctx context.Context, customerID CustomerID) (CustomerBalances, error) {
	if _, err := service.store.GetCustomer(ctx, customerID); err != nil {
		return CustomerBalances{}, err
	}
	transactions, err := service.store.ListCustomerTransactions(ctx, customerID)
	if err != nil {
		return CustomerBalances{}, err
	}
	return ReplayBalances(transactions), nil
}

// CustomerInventory reconstructs the customer's outstanding bottles per
// category/brand/size bucket.
func (service *Service) CustomerInventory(ctx context.Context, customerID CustomerID) ([]InventoryLine, error) {
	transactions, err := service.store.ListCustomerTransactions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return ReplayInventory(transactions), nil
}

// PendingChangesCount reports how many items still need to reach the
// remote store. Ledger membership and the per-entity dirty marker are
// distinct signals; a dirty entity with no ledger entry (bulk-push gap)
// still counts.
func (service *Service) PendingChangesCount(ctx context.Context) (int, error) {
	changes, err := service.store.ListChanges(ctx)
	if err != nil {
		return 0, err
	}
	referencedCustomers := make(map[CustomerID]bool)
	referencedTransactions := make(map[TransactionID]bool)
	for _, change := range changes {
		switch payload := change.Payload.(type) {
		case CustomerPayload:
			referencedCustomers[payload.Customer.CustomerID] = true
		case CustomerDeletePayload:
			referencedCustomers[payload.CustomerID] = true
		case TransactionPayload:
			referencedTransactions[payload.Transaction.TransactionID] = true
		case TransactionDeletePayload:
			referencedTransactions[payload.TransactionID] = true
		}
	}
	count := len(changes)
	dirtyCustomers, err := service.store.ListDirtyCustomers(ctx)
	if err != nil {
		return 0, err
	}
	for _, customer := range dirtyCustomers {
		if !referencedCustomers[customer.CustomerID] {
			count++
		}
	}
	dirtyTransactions, err := service.store.ListDirtyTransactions(ctx)
	if err != nil {
		return 0, err
	}
	for _, transaction := range dirtyTransactions {
		if !referencedTransactions[transaction.TransactionID] {
			count++
		}
	}
	return count, nil
}

func (service *Service) appendChange(ctx context.Context, transactionStore Store, changeType ChangeType, payload ChangePayload) error {
	changeID, err := NewChangeID(service.newChangeID())
	if err != nil {
		return err
	}
	return transactionStore.AppendChange(ctx, PendingChange{
		ChangeID:       changeID,
		Type:           changeType,
		Payload:        payload,
		CreatedUnixUTC: service.nowFn(),
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func normalizeTransaction(transaction Transaction, trust TrustStatus) Transaction {
	if len(transaction.Items) > 0 {
		// The approved-trust exemption applies per item: Totals prefers
		// the item amounts, so the summary alone is not enough.
		if transaction.Type == TransactionIssue && trust == TrustApproved {
			for index := range transaction.Items {
				transaction.Items[index].DepositCents = 0
			}
		}
		first := transaction.Items[0]
		bottles, deposit := transaction.Totals()
		transaction.Category = first.Category
		transaction.Brand = first.Brand
		transaction.Size = first.Size
		transaction.BottleCount = bottles
		transaction.DepositCents = deposit
		return transaction
	}
	switch transaction.Type {
	case TransactionIssue:
		if trust == TrustApproved {
			transaction.DepositCents = 0
		} else if transaction.DepositCents == 0 {
			transaction.DepositCents = DefaultDeposit(trust, TransactionIssue, transaction.Category, transaction.BottleCount)
		}
	case TransactionReturn:
		if transaction.DepositCents == 0 {
			transaction.DepositCents = DefaultDeposit(trust, TransactionReturn, transaction.Category, transaction.BottleCount)
		}
	}
	return transaction
}
