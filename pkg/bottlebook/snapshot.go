package bottlebook

import (
	"context"
	"encoding/json"
	"fmt"
)

// Snapshot is the manual backup document: full copies of both
// collections plus version and capture time.
type Snapshot struct {
	Version          int                   `json:"version"`
	TimestampUnixUTC int64                 `json:"timestamp"`
	Customers        []CustomerDocument    `json:"customers"`
	Transactions     []TransactionDocument `json:"transactions"`
}

// CustomerDocument is the wire shape of a customer.
type CustomerDocument struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address,omitempty"`
	TrustStatus  string `json:"trustStatus"`
	LastSyncedAt *int64 `json:"lastSyncedAt,omitempty"`
}

// TransactionItemDocument is the wire shape of one line item.
type TransactionItemDocument struct {
	Category     string `json:"category"`
	Brand        string `json:"brand"`
	Size         string `json:"size"`
	BottleCount  int    `json:"bottleCount"`
	DepositCents int64  `json:"depositCents"`
}

// TransactionDocument is the wire shape of a transaction. The transient
// customer-name join field has no representation here: it is stripped
// before persisting.
type TransactionDocument struct {
	ID           string                    `json:"id"`
	CustomerID   string                    `json:"customerId"`
	Type         string                    `json:"type"`
	Category     string                    `json:"category,omitempty"`
	Brand        string                    `json:"brand,omitempty"`
	Size         string                    `json:"size,omitempty"`
	BottleCount  int                       `json:"bottleCount"`
	DepositCents int64                     `json:"depositCents"`
	Items        []TransactionItemDocument `json:"items,omitempty"`
	Notes        string                    `json:"notes,omitempty"`
	Timestamp    int64                     `json:"timestamp"`
	LastSyncedAt *int64                    `json:"lastSyncedAt,omitempty"`
}

// EncodeCustomer maps a customer to its wire document.
func EncodeCustomer(customer Customer) CustomerDocument {
	return CustomerDocument{
		ID:           customer.CustomerID.String(),
		Name:         customer.Name,
		Phone:        customer.Phone.String(),
		Address:      customer.Address,
		TrustStatus:  customer.TrustStatus.String(),
		LastSyncedAt: customer.LastSyncedUnixUTC,
	}
}

// DecodeCustomer maps a wire document back to a customer.
func DecodeCustomer(document CustomerDocument) (Customer, error) {
	customerID, err := NewCustomerID(document.ID)
	if err != nil {
		return Customer{}, err
	}
	phone, err := NewPhoneNumber(document.Phone)
	if err != nil {
		return Customer{}, err
	}
	trust, err := ParseTrustStatus(document.TrustStatus)
	if err != nil {
		return Customer{}, err
	}
	return Customer{
		CustomerID:        customerID,
		Name:              document.Name,
		Phone:             phone,
		Address:           document.Address,
		TrustStatus:       trust,
		LastSyncedUnixUTC: document.LastSyncedAt,
	}, nil
}

// EncodeTransaction maps a transaction to its wire document, dropping
// the read-time customer-name join.
func EncodeTransaction(transaction Transaction) TransactionDocument {
	items := make([]TransactionItemDocument, 0, len(transaction.Items))
	for _, item := range transaction.Items {
		items = append(items, TransactionItemDocument{
			Category:     item.Category,
			Brand:        item.Brand,
			Size:         item.Size,
			BottleCount:  item.BottleCount.Int(),
			DepositCents: item.DepositCents.Int64(),
		})
	}
	if len(items) == 0 {
		items = nil
	}
	return TransactionDocument{
		ID:           transaction.TransactionID.String(),
		CustomerID:   transaction.CustomerID.String(),
		Type:         transaction.Type.String(),
		Category:     transaction.Category,
		Brand:        transaction.Brand,
		Size:         transaction.Size,
		BottleCount:  transaction.BottleCount.Int(),
		DepositCents: transaction.DepositCents.Int64(),
		Items:        items,
		Notes:        transaction.Notes,
		Timestamp:    transaction.TimestampUnixUTC,
		LastSyncedAt: transaction.LastSyncedUnixUTC,
	}
}

// DecodeTransaction maps a wire document back to a transaction.
func DecodeTransaction(document TransactionDocument) (Transaction, error) {
	transactionID, err := NewTransactionID(document.ID)
	if err != nil {
		return Transaction{}, err
	}
	customerID, err := NewCustomerID(document.CustomerID)
	if err != nil {
		return Transaction{}, err
	}
	transactionType, err := ParseTransactionType(document.Type)
	if err != nil {
		return Transaction{}, err
	}
	bottleCount, err := NewBottleCount(document.BottleCount)
	if err != nil {
		return Transaction{}, err
	}
	depositCents, err := NewDepositCents(document.DepositCents)
	if err != nil {
		return Transaction{}, err
	}
	var items []TransactionItem
	for _, item := range document.Items {
		itemCount, err := NewBottleCount(item.BottleCount)
		if err != nil {
			return Transaction{}, err
		}
		itemDeposit, err := NewDepositCents(item.DepositCents)
		if err != nil {
			return Transaction{}, err
		}
		items = append(items, TransactionItem{
			Category:     item.Category,
			Brand:        item.Brand,
			Size:         item.Size,
			BottleCount:  itemCount,
			DepositCents: itemDeposit,
		})
	}
	return Transaction{
		TransactionID:     transactionID,
		CustomerID:        customerID,
		Type:              transactionType,
		Category:          document.Category,
		Brand:             document.Brand,
		Size:              document.Size,
		BottleCount:       bottleCount,
		DepositCents:      depositCents,
		Items:             items,
		Notes:             document.Notes,
		TimestampUnixUTC:  document.Timestamp,
		LastSyncedUnixUTC: document.LastSyncedAt,
	}, nil
}

// ExportSnapshot serializes both collections for manual backup.
func (service *Service) ExportSnapshot(ctx context.Context) ([]byte, error) {
	customers, err := service.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := service.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := Snapshot{
		Version:          SnapshotVersion,
		TimestampUnixUTC: service.nowFn(),
		Customers:        make([]CustomerDocument, 0, len(customers)),
		Transactions:     make([]TransactionDocument, 0, len(transactions)),
	}
	for _, customer := range customers {
		snapshot.Customers = append(snapshot.Customers, EncodeCustomer(customer))
	}
	for _, transaction := range transactions {
		snapshot.Transactions = append(snapshot.Transactions, EncodeTransaction(transaction))
	}
	return json.Marshal(snapshot)
}

// ImportSnapshot validates a backup document and wholesale-replaces
// both local collections with its contents.
func (service *Service) ImportSnapshot(ctx context.Context, raw []byte) error {
	operationError := service.importSnapshot(ctx, raw)
	service.logOperation(ctx, OperationLog{
		Operation: operationImportSnapshot,
		Error:     operationError,
	})
	return operationError
}

func (service *Service) importSnapshot(ctx context.Context, raw []byte) error {
	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snapshot.Customers == nil || snapshot.Transactions == nil {
		return fmt.Errorf("%w: customers and transactions must both be arrays", ErrInvalidSnapshot)
	}
	customers := make([]Customer, 0, len(snapshot.Customers))
	for _, document := range snapshot.Customers {
		customer, err := DecodeCustomer(document)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		customers = append(customers, customer)
	}
	transactions := make([]Transaction, 0, len(snapshot.Transactions))
	for _, document := range snapshot.Transactions {
		transaction, err := DecodeTransaction(document)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		transactions = append(transactions, transaction)
	}
	return service.store.ReplaceAll(ctx, customers, transactions)
}
