package bottlebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
)

func TestAddCustomerStoresRecordAndChange(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	customer := mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending)

	if err := service.AddCustomer(context.Background(), customer); err != nil {
		test.Fatalf("add customer: %v", err)
	}

	stored := store.mustCustomer(test, customer.CustomerID)
	if stored.Name != "Amina" || stored.TrustStatus != TrustPending {
		test.Fatalf("unexpected stored customer: %+v", stored)
	}
	if len(store.changes) != 1 {
		test.Fatalf("expected 1 pending change, got %d", len(store.changes))
	}
	change := store.changes[0]
	if change.Type != ChangeAddCustomer {
		test.Fatalf("expected add_customer change, got %s", change.Type)
	}
	payload, ok := change.Payload.(CustomerPayload)
	if !ok {
		test.Fatalf("unexpected payload: %T", change.Payload)
	}
	if payload.Customer.CustomerID != customer.CustomerID {
		test.Fatalf("payload carries wrong customer: %+v", payload.Customer)
	}
}

func TestAddCustomerRejectsDuplicatePhone(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	first := mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending)
	second := mustCustomer(test, "cust-2", "Bakyt", "555-0001", TrustPending)

	if err := service.AddCustomer(context.Background(), first); err != nil {
		test.Fatalf("add customer: %v", err)
	}
	err := service.AddCustomer(context.Background(), second)
	if !errors.Is(err, ErrDuplicatePhone) {
		test.Fatalf(errorMismatchMessage, ErrDuplicatePhone, err)
	}
	if len(store.customerOrder) != 1 {
		test.Fatalf("expected rejected customer to stay out of the store, got %d records", len(store.customerOrder))
	}
	if len(store.changes) != 1 {
		test.Fatalf("expected no change for rejected insert, got %d", len(store.changes))
	}
}

func TestDeleteCustomerKeepsTransactionLog(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	customer := mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending)
	store.putCustomer(customer)
	store.putTransaction(mustIssue(test, "txn-1", "cust-1", 5, 2500, 100))

	if err := service.DeleteCustomer(context.Background(), customer.CustomerID); err != nil {
		test.Fatalf("delete customer: %v", err)
	}

	if _, err := store.GetCustomer(context.Background(), customer.CustomerID); !errors.Is(err, ErrUnknownCustomer) {
		test.Fatalf("expected customer gone, got %v", err)
	}
	if len(store.transactionOrder) != 1 {
		test.Fatalf("expected transaction log untouched, got %d records", len(store.transactionOrder))
	}
	change := store.changes[len(store.changes)-1]
	if change.Type != ChangeDeleteCustomer {
		test.Fatalf("expected delete_customer change, got %s", change.Type)
	}
	payload, ok := change.Payload.(CustomerDeletePayload)
	if !ok || payload.CustomerID != customer.CustomerID {
		test.Fatalf("unexpected delete payload: %+v", change.Payload)
	}
}

func TestDeleteCustomerUnknown(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	err := service.DeleteCustomer(context.Background(), mustCustomerID(test, "missing"))
	if !errors.Is(err, ErrUnknownCustomer) {
		test.Fatalf(errorMismatchMessage, ErrUnknownCustomer, err)
	}
	if len(store.changes) != 0 {
		test.Fatalf("expected no change for failed delete, got %d", len(store.changes))
	}
}

func TestUpdateTrustStatusMarksCustomerDirty(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	customer := mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending)
	syncedAt := int64(50)
	customer.LastSyncedUnixUTC = &syncedAt
	store.putCustomer(customer)

	if err := service.UpdateCustomerTrustStatus(context.Background(), customer.CustomerID, TrustApproved); err != nil {
		test.Fatalf("update trust: %v", err)
	}

	stored := store.mustCustomer(test, customer.CustomerID)
	if stored.TrustStatus != TrustApproved {
		test.Fatalf("expected approved, got %s", stored.TrustStatus)
	}
	change := store.changes[len(store.changes)-1]
	if change.Type != ChangeUpdateCustomer {
		test.Fatalf("expected update_customer change, got %s", change.Type)
	}
	payload, ok := change.Payload.(CustomerPayload)
	if !ok {
		test.Fatalf("unexpected payload: %T", change.Payload)
	}
	if payload.Customer.TrustStatus != TrustApproved {
		test.Fatalf("payload carries stale trust status: %+v", payload.Customer)
	}
	if !payload.Customer.Dirty() {
		test.Fatalf("expected payload snapshot marked dirty")
	}
}

func TestAddTransactionDefaultsDepositFromRateTable(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))

	transaction := mustIssue(test, "txn-1", "cust-1", 4, 0, 0)
	transaction.Category = "water"
	if err := service.AddTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("add transaction: %v", err)
	}

	stored := store.mustTransaction(test, transaction.TransactionID)
	if stored.DepositCents != 1200 {
		test.Fatalf("expected deposit 1200 for 4 water bottles, got %d", stored.DepositCents)
	}
	if stored.TimestampUnixUTC != stubNowUnixUTC {
		test.Fatalf("expected clock timestamp %d, got %d", stubNowUnixUTC, stored.TimestampUnixUTC)
	}
}

func TestAddTransactionApprovedCustomerSkipsDeposit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustApproved))

	transaction := mustIssue(test, "txn-1", "cust-1", 10, 5000, 100)
	if err := service.AddTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("add transaction: %v", err)
	}

	stored := store.mustTransaction(test, transaction.TransactionID)
	if stored.DepositCents != 0 {
		test.Fatalf("expected zero deposit for approved customer, got %d", stored.DepositCents)
	}
}

func TestAddTransactionApprovedCustomerSkipsItemDeposits(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustApproved))

	transaction := Transaction{
		TransactionID: mustTransactionID(test, "txn-1"),
		CustomerID:    mustCustomerID(test, "cust-1"),
		Type:          TransactionIssue,
		Items: []TransactionItem{
			{Category: "soft_drink", Brand: "Cola", Size: "0.5L", BottleCount: 3, DepositCents: 1500},
			{Category: "water", Brand: "Spring", Size: "1L", BottleCount: 2, DepositCents: 600},
		},
		TimestampUnixUTC: 100,
	}
	if err := service.AddTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("add transaction: %v", err)
	}

	stored := store.mustTransaction(test, transaction.TransactionID)
	if stored.DepositCents != 0 {
		test.Fatalf("expected zero summary deposit for approved customer, got %d", stored.DepositCents)
	}
	for index, item := range stored.Items {
		if item.DepositCents != 0 {
			test.Fatalf("expected item %d deposit zeroed, got %d", index, item.DepositCents)
		}
	}
	if _, deposit := stored.Totals(); deposit != 0 {
		test.Fatalf("expected zero total deposit, got %d", deposit)
	}
	if stored.BottleCount != 5 {
		test.Fatalf("expected summary bottle count preserved, got %d", stored.BottleCount)
	}
}

func TestAddTransactionNormalizesSummaryFromItems(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))

	transaction := Transaction{
		TransactionID: mustTransactionID(test, "txn-1"),
		CustomerID:    mustCustomerID(test, "cust-1"),
		Type:          TransactionIssue,
		Items: []TransactionItem{
			{Category: "soft_drink", Brand: "Cola", Size: "0.5L", BottleCount: 3, DepositCents: 1500},
			{Category: "water", Brand: "Spring", Size: "1L", BottleCount: 2, DepositCents: 600},
		},
		TimestampUnixUTC: 100,
	}
	if err := service.AddTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("add transaction: %v", err)
	}

	stored := store.mustTransaction(test, transaction.TransactionID)
	if stored.BottleCount != 5 || stored.DepositCents != 2100 {
		test.Fatalf("expected summary 5 bottles / 2100 cents, got %d / %d", stored.BottleCount, stored.DepositCents)
	}
	if stored.Category != "soft_drink" || stored.Brand != "Cola" || stored.Size != "0.5L" {
		test.Fatalf("expected summary fields from first item, got %+v", stored)
	}
}

func TestAddTransactionStripsTransientName(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))

	transaction := mustIssue(test, "txn-1", "cust-1", 2, 1000, 100)
	transaction.CustomerName = "Amina"
	if err := service.AddTransaction(context.Background(), transaction); err != nil {
		test.Fatalf("add transaction: %v", err)
	}

	stored := store.mustTransaction(test, transaction.TransactionID)
	if stored.CustomerName != "" {
		test.Fatalf("expected transient name stripped, got %q", stored.CustomerName)
	}
	payload, ok := store.changes[len(store.changes)-1].Payload.(TransactionPayload)
	if !ok {
		test.Fatalf("unexpected payload: %T", store.changes[len(store.changes)-1].Payload)
	}
	if payload.Transaction.CustomerName != "" {
		test.Fatalf("expected transient name stripped from payload, got %q", payload.Transaction.CustomerName)
	}
}

func TestAddTransactionRejectsOverReturn(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))
	store.putTransaction(mustIssue(test, "txn-1", "cust-1", 3, 1500, 100))

	overReturn := mustReturn(test, "txn-2", "cust-1", 5, 2500, 200)
	err := service.AddTransaction(context.Background(), overReturn)
	if !errors.Is(err, ErrInsufficientOutstanding) {
		test.Fatalf(errorMismatchMessage, ErrInsufficientOutstanding, err)
	}
	if len(store.transactionOrder) != 1 {
		test.Fatalf("expected rejected return to stay out of the log, got %d records", len(store.transactionOrder))
	}
}

func TestAddTransactionUnknownCustomer(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	err := service.AddTransaction(context.Background(), mustIssue(test, "txn-1", "ghost", 1, 500, 100))
	if !errors.Is(err, ErrUnknownCustomer) {
		test.Fatalf(errorMismatchMessage, ErrUnknownCustomer, err)
	}
}

func TestDeleteTransactionRestoresBalances(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))
	store.putTransaction(mustIssue(test, "txn-1", "cust-1", 5, 2500, 100))
	extra := mustIssue(test, "txn-2", "cust-1", 3, 1500, 200)
	store.putTransaction(extra)

	before, err := service.CustomerBalances(context.Background(), mustCustomerID(test, "cust-1"))
	if err != nil {
		test.Fatalf("balances: %v", err)
	}
	if before.BottlesOutstanding != 8 || before.DepositsHeldCents != 4000 {
		test.Fatalf("unexpected balances before delete: %+v", before)
	}

	if err := service.DeleteTransaction(context.Background(), extra.TransactionID); err != nil {
		test.Fatalf("delete transaction: %v", err)
	}

	after, err := service.CustomerBalances(context.Background(), mustCustomerID(test, "cust-1"))
	if err != nil {
		test.Fatalf("balances: %v", err)
	}
	if after.BottlesOutstanding != 5 || after.DepositsHeldCents != 2500 {
		test.Fatalf("expected balances restored to pre-transaction state, got %+v", after)
	}
	change := store.changes[len(store.changes)-1]
	if change.Type != ChangeDeleteTransaction {
		test.Fatalf("expected delete_transaction change, got %s", change.Type)
	}
}

func TestDeleteTransactionUnknown(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	err := service.DeleteTransaction(context.Background(), mustTransactionID(test, "missing"))
	if !errors.Is(err, ErrUnknownTransaction) {
		test.Fatalf(errorMismatchMessage, ErrUnknownTransaction, err)
	}
}

func TestTransactionsResolveCustomerNames(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))
	store.putTransaction(mustIssue(test, "txn-1", "cust-1", 2, 1000, 100))
	store.putTransaction(mustIssue(test, "txn-2", "ghost", 1, 500, 200))

	transactions, err := service.Transactions(context.Background())
	if err != nil {
		test.Fatalf("transactions: %v", err)
	}
	byID := make(map[string]Transaction, len(transactions))
	for _, transaction := range transactions {
		byID[transaction.TransactionID.String()] = transaction
	}
	if byID["txn-1"].CustomerName != "Amina" {
		test.Fatalf("expected resolved name, got %q", byID["txn-1"].CustomerName)
	}
	if byID["txn-2"].CustomerName != "" {
		test.Fatalf("expected empty name for deleted customer, got %q", byID["txn-2"].CustomerName)
	}
}

func TestCustomerTransactionsNewestFirst(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))
	store.putTransaction(mustIssue(test, "txn-old", "cust-1", 1, 500, 100))
	store.putTransaction(mustIssue(test, "txn-new", "cust-1", 1, 500, 300))
	store.putTransaction(mustIssue(test, "txn-mid", "cust-1", 1, 500, 200))

	transactions, err := service.CustomerTransactions(context.Background(), mustCustomerID(test, "cust-1"))
	if err != nil {
		test.Fatalf("customer transactions: %v", err)
	}
	if len(transactions) != 3 {
		test.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	if transactions[0].TransactionID.String() != "txn-new" || transactions[2].TransactionID.String() != "txn-old" {
		test.Fatalf("expected newest-first ordering, got %+v", transactions)
	}
}

func TestPendingChangesCountIncludesUnreferencedDirtyEntities(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	dirtyCustomer := mustCustomer(test, "cust-dirty", "Amina", "555-0001", TrustPending)
	store.putCustomer(dirtyCustomer)
	syncedAt := int64(50)
	cleanCustomer := mustCustomer(test, "cust-clean", "Bakyt", "555-0002", TrustPending)
	cleanCustomer.LastSyncedUnixUTC = &syncedAt
	store.putCustomer(cleanCustomer)

	referenced := mustCustomer(test, "cust-ledger", "Chinara", "555-0003", TrustPending)
	if err := service.AddCustomer(context.Background(), referenced); err != nil {
		test.Fatalf("add customer: %v", err)
	}

	count, err := service.PendingChangesCount(context.Background())
	if err != nil {
		test.Fatalf("pending count: %v", err)
	}
	// One ledger entry plus one dirty customer the ledger never mentions.
	if count != 2 {
		test.Fatalf("expected pending count 2, got %d", count)
	}
}

func TestSettleScenario(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	customerID := mustCustomerID(test, "cust-1")
	store.putCustomer(mustCustomer(test, "cust-1", "Amina", "555-0001", TrustPending))

	if err := service.AddTransaction(context.Background(), mustIssue(test, "txn-1", "cust-1", 10, 5000, 100)); err != nil {
		test.Fatalf("issue: %v", err)
	}
	if err := service.AddTransaction(context.Background(), mustReturn(test, "txn-2", "cust-1", 4, 2000, 200)); err != nil {
		test.Fatalf("return: %v", err)
	}

	balances, err := service.CustomerBalances(context.Background(), customerID)
	if err != nil {
		test.Fatalf("balances: %v", err)
	}
	if balances.BottlesOutstanding != 6 || balances.DepositsHeldCents != 3000 {
		test.Fatalf("expected 6 bottles / 3000 cents outstanding, got %+v", balances)
	}

	settle := Transaction{
		TransactionID:    mustTransactionID(test, "txn-3"),
		CustomerID:       customerID,
		Type:             TransactionSettle,
		BottleCount:      6,
		DepositCents:     3000,
		TimestampUnixUTC: 300,
	}
	if err := service.AddTransaction(context.Background(), settle); err != nil {
		test.Fatalf("settle: %v", err)
	}

	balances, err = service.CustomerBalances(context.Background(), customerID)
	if err != nil {
		test.Fatalf("balances: %v", err)
	}
	if balances.BottlesOutstanding != 0 || balances.DepositsHeldCents != 0 {
		test.Fatalf("expected settle to zero balances, got %+v", balances)
	}
	if balances.LastTransactionUnixUTC == nil || *balances.LastTransactionUnixUTC != 300 {
		test.Fatalf("expected last transaction at 300, got %+v", balances.LastTransactionUnixUTC)
	}
}

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	_, err := NewService(nil, func() int64 { return 0 })
	if !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidServiceConfig, err)
	}
	_, err = NewService(newStubStore(test), nil)
	if !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidServiceConfig, err)
	}
}

const stubNowUnixUTC int64 = 1700000000

type stubStore struct {
	customers        map[CustomerID]Customer
	customerOrder    []CustomerID
	transactions     map[TransactionID]Transaction
	transactionOrder []TransactionID
	changes          []PendingChange
	lastSyncUnixUTC  int64
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		customers:    make(map[CustomerID]Customer),
		transactions: make(map[TransactionID]Transaction),
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) InsertCustomer(ctx context.Context, customer Customer) error {
	if _, exists := store.customers[customer.CustomerID]; exists {
		return ErrDuplicatePhone
	}
	store.customers[customer.CustomerID] = customer
	store.customerOrder = append(store.customerOrder, customer.CustomerID)
	return nil
}

func (store *stubStore) DeleteCustomer(ctx context.Context, customerID CustomerID) error {
	if _, exists := store.customers[customerID]; !exists {
		return ErrUnknownCustomer
	}
	delete(store.customers, customerID)
	for index, existing := range store.customerOrder {
		if existing == customerID {
			store.customerOrder = append(store.customerOrder[:index], store.customerOrder[index+1:]...)
			break
		}
	}
	return nil
}

func (store *stubStore) UpdateCustomerTrust(ctx context.Context, customerID CustomerID, status TrustStatus) error {
	customer, exists := store.customers[customerID]
	if !exists {
		return ErrUnknownCustomer
	}
	customer.TrustStatus = status
	customer.LastSyncedUnixUTC = nil
	store.customers[customerID] = customer
	return nil
}

func (store *stubStore) GetCustomer(ctx context.Context, customerID CustomerID) (Customer, error) {
	customer, exists := store.customers[customerID]
	if !exists {
		return Customer{}, ErrUnknownCustomer
	}
	return customer, nil
}

func (store *stubStore) FindCustomerByPhone(ctx context.Context, phone PhoneNumber) (Customer, bool, error) {
	for _, customerID := range store.customerOrder {
		if store.customers[customerID].Phone == phone {
			return store.customers[customerID], true, nil
		}
	}
	return Customer{}, false, nil
}

func (store *stubStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	customers := make([]Customer, 0, len(store.customerOrder))
	for _, customerID := range store.customerOrder {
		customers = append(customers, store.customers[customerID])
	}
	return customers, nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) error {
	store.transactions[transaction.TransactionID] = transaction
	store.transactionOrder = append(store.transactionOrder, transaction.TransactionID)
	return nil
}

func (store *stubStore) DeleteTransaction(ctx context.Context, transactionID TransactionID) error {
	if _, exists := store.transactions[transactionID]; !exists {
		return ErrUnknownTransaction
	}
	delete(store.transactions, transactionID)
	for index, existing := range store.transactionOrder {
		if existing == transactionID {
			store.transactionOrder = append(store.transactionOrder[:index], store.transactionOrder[index+1:]...)
			break
		}
	}
	return nil
}

func (store *stubStore) GetTransaction(ctx context.Context, transactionID TransactionID) (Transaction, error) {
	transaction, exists := store.transactions[transactionID]
	if !exists {
		return Transaction{}, ErrUnknownTransaction
	}
	return transaction, nil
}

func (store *stubStore) ListTransactions(ctx context.Context) ([]Transaction, error) {
	transactions := make([]Transaction, 0, len(store.transactionOrder))
	for _, transactionID := range store.transactionOrder {
		transactions = append(transactions, store.transactions[transactionID])
	}
	return transactions, nil
}

func (store *stubStore) ListCustomerTransactions(ctx context.Context, customerID CustomerID) ([]Transaction, error) {
	var transactions []Transaction
	for _, transactionID := range store.transactionOrder {
		if store.transactions[transactionID].CustomerID == customerID {
			transactions = append(transactions, store.transactions[transactionID])
		}
	}
	sort.SliceStable(transactions, func(left, right int) bool {
		return transactions[left].TimestampUnixUTC < transactions[right].TimestampUnixUTC
	})
	return transactions, nil
}

func (store *stubStore) AppendChange(ctx context.Context, change PendingChange) error {
	store.changes = append(store.changes, change)
	return nil
}

func (store *stubStore) ListChanges(ctx context.Context) ([]PendingChange, error) {
	return append([]PendingChange(nil), store.changes...), nil
}

func (store *stubStore) RemoveChanges(ctx context.Context, changeIDs []ChangeID) error {
	removed := make(map[ChangeID]bool, len(changeIDs))
	for _, changeID := range changeIDs {
		removed[changeID] = true
	}
	kept := store.changes[:0]
	for _, change := range store.changes {
		if !removed[change.ChangeID] {
			kept = append(kept, change)
		}
	}
	store.changes = kept
	return nil
}

func (store *stubStore) ClearChanges(ctx context.Context) error {
	store.changes = nil
	return nil
}

func (store *stubStore) CountChanges(ctx context.Context) (int, error) {
	return len(store.changes), nil
}

func (store *stubStore) MarkCustomerSynced(ctx context.Context, customerID CustomerID, syncedUnixUTC int64) error {
	customer, exists := store.customers[customerID]
	if !exists {
		return nil
	}
	customer.LastSyncedUnixUTC = &syncedUnixUTC
	store.customers[customerID] = customer
	return nil
}

func (store *stubStore) MarkTransactionSynced(ctx context.Context, transactionID TransactionID, syncedUnixUTC int64) error {
	transaction, exists := store.transactions[transactionID]
	if !exists {
		return nil
	}
	transaction.LastSyncedUnixUTC = &syncedUnixUTC
	store.transactions[transactionID] = transaction
	return nil
}

func (store *stubStore) ListDirtyCustomers(ctx context.Context) ([]Customer, error) {
	var dirty []Customer
	for _, customerID := range store.customerOrder {
		if store.customers[customerID].Dirty() {
			dirty = append(dirty, store.customers[customerID])
		}
	}
	return dirty, nil
}

func (store *stubStore) ListDirtyTransactions(ctx context.Context) ([]Transaction, error) {
	var dirty []Transaction
	for _, transactionID := range store.transactionOrder {
		if store.transactions[transactionID].Dirty() {
			dirty = append(dirty, store.transactions[transactionID])
		}
	}
	return dirty, nil
}

func (store *stubStore) MarkAllSynced(ctx context.Context, syncedUnixUTC int64) error {
	for customerID, customer := range store.customers {
		stamp := syncedUnixUTC
		customer.LastSyncedUnixUTC = &stamp
		store.customers[customerID] = customer
	}
	for transactionID, transaction := range store.transactions {
		stamp := syncedUnixUTC
		transaction.LastSyncedUnixUTC = &stamp
		store.transactions[transactionID] = transaction
	}
	return nil
}

func (store *stubStore) ReplaceAll(ctx context.Context, customers []Customer, transactions []Transaction) error {
	store.customers = make(map[CustomerID]Customer, len(customers))
	store.customerOrder = store.customerOrder[:0]
	for _, customer := range customers {
		store.customers[customer.CustomerID] = customer
		store.customerOrder = append(store.customerOrder, customer.CustomerID)
	}
	store.transactions = make(map[TransactionID]Transaction, len(transactions))
	store.transactionOrder = store.transactionOrder[:0]
	for _, transaction := range transactions {
		store.transactions[transaction.TransactionID] = transaction
		store.transactionOrder = append(store.transactionOrder, transaction.TransactionID)
	}
	return nil
}

func (store *stubStore) LastSyncUnixUTC(ctx context.Context) (int64, error) {
	return store.lastSyncUnixUTC, nil
}

func (store *stubStore) SetLastSyncUnixUTC(ctx context.Context, syncedUnixUTC int64) error {
	store.lastSyncUnixUTC = syncedUnixUTC
	return nil
}

func (store *stubStore) putCustomer(customer Customer) {
	store.customers[customer.CustomerID] = customer
	store.customerOrder = append(store.customerOrder, customer.CustomerID)
}

func (store *stubStore) putTransaction(transaction Transaction) {
	store.transactions[transaction.TransactionID] = transaction
	store.transactionOrder = append(store.transactionOrder, transaction.TransactionID)
}

func (store *stubStore) mustCustomer(test *testing.T, customerID CustomerID) Customer {
	test.Helper()
	customer, exists := store.customers[customerID]
	if !exists {
		test.Fatalf("customer %s not found", customerID.String())
	}
	return customer
}

func (store *stubStore) mustTransaction(test *testing.T, transactionID TransactionID) Transaction {
	test.Helper()
	transaction, exists := store.transactions[transactionID]
	if !exists {
		test.Fatalf("transaction %s not found", transactionID.String())
	}
	return transaction
}

func mustNewService(test *testing.T, store Store) *Service {
	test.Helper()
	sequence := 0
	service, err := NewService(store, func() int64 { return stubNowUnixUTC }, WithChangeIDFactory(func() string {
		sequence++
		return fmt.Sprintf("change-%d", sequence)
	}))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustCustomerID(test *testing.T, raw string) CustomerID {
	test.Helper()
	value, err := NewCustomerID(raw)
	if err != nil {
		test.Fatalf("customer id: %v", err)
	}
	return value
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	value, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("transaction id: %v", err)
	}
	return value
}

func mustPhoneNumber(test *testing.T, raw string) PhoneNumber {
	test.Helper()
	value, err := NewPhoneNumber(raw)
	if err != nil {
		test.Fatalf("phone number: %v", err)
	}
	return value
}

func mustCustomer(test *testing.T, id string, name string, phone string, trust TrustStatus) Customer {
	test.Helper()
	return Customer{
		CustomerID:  mustCustomerID(test, id),
		Name:        name,
		Phone:       mustPhoneNumber(test, phone),
		TrustStatus: trust,
	}
}

func mustIssue(test *testing.T, id string, customerID string, bottles int, deposit int64, timestamp int64) Transaction {
	test.Helper()
	return Transaction{
		TransactionID:    mustTransactionID(test, id),
		CustomerID:       mustCustomerID(test, customerID),
		Type:             TransactionIssue,
		Category:         "soft_drink",
		BottleCount:      BottleCount(bottles),
		DepositCents:     DepositCents(deposit),
		TimestampUnixUTC: timestamp,
	}
}

func mustReturn(test *testing.T, id string, customerID string, bottles int, deposit int64, timestamp int64) Transaction {
	test.Helper()
	return Transaction{
		TransactionID:    mustTransactionID(test, id),
		CustomerID:       mustCustomerID(test, customerID),
		Type:             TransactionReturn,
		Category:         "soft_drink",
		BottleCount:      BottleCount(bottles),
		DepositCents:     DepositCents(deposit),
		TimestampUnixUTC: timestamp,
	}
}
