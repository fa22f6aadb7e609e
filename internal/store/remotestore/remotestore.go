package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/cloudsync"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorOperationRemote    = "remote"
	errorSubjectCustomer    = "customer"
	errorSubjectTransaction = "transaction"
	errorSubjectProbe       = "probe"
	errorCodeUpsert         = "upsert"
	errorCodeDelete         = "delete"
	errorCodeFetch          = "fetch"
	errorCodeInvalid        = "invalid"
	errorCodeEncode         = "encode"
)

// Store implements cloudsync.RemoteStore against a shared Postgres
// instance. Every statement is scoped by tenant id.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Prepare migrates the remote schema.
func (store *Store) Prepare(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(&CustomerRow{}, &TransactionRow{}); err != nil {
		return classifyRemoteError(errorSubjectProbe, "migrate", err)
	}
	return nil
}

// Probe is the reachability check: a trivial round trip, not a data
// fetch.
func (store *Store) Probe(ctx context.Context) error {
	var one int
	if err := store.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return classifyRemoteError(errorSubjectProbe, "ping", err)
	}
	return nil
}

func (store *Store) UpsertCustomers(ctx context.Context, tenantID bottlebook.TenantID, customers []bottlebook.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	now := store.nowFn()
	rows := make([]CustomerRow, 0, len(customers))
	for _, customer := range customers {
		rows = append(rows, CustomerRow{
			TenantID:     tenantID.String(),
			CustomerID:   customer.CustomerID.String(),
			Name:         customer.Name,
			Phone:        customer.Phone.String(),
			Address:      customer.Address,
			TrustStatus:  customer.TrustStatus.String(),
			UpdatedAt:    now,
			LastPushedAt: now,
		})
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "customer_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "phone", "address", "trust_status", "updated_at", "last_pushed_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return classifyRemoteError(errorSubjectCustomer, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) UpsertTransactions(ctx context.Context, tenantID bottlebook.TenantID, transactions []bottlebook.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	now := store.nowFn()
	rows := make([]TransactionRow, 0, len(transactions))
	for _, transaction := range transactions {
		row, err := encodeTransactionRow(tenantID, transaction, now)
		if err != nil {
			return bottlebook.WrapError(errorOperationRemote, errorSubjectTransaction, errorCodeEncode, err)
		}
		rows = append(rows, row)
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "transaction_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_id", "type", "category", "brand", "size", "bottle_count", "deposit_cents", "items", "notes", "occurred_at", "last_pushed_at"}),
		}).
		Create(&rows).Error
	if err != nil {
		return classifyRemoteError(errorSubjectTransaction, errorCodeUpsert, err)
	}
	return nil
}

func (store *Store) DeleteCustomer(ctx context.Context, tenantID bottlebook.TenantID, customerID bottlebook.CustomerID) error {
	err := store.db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ?", tenantID.String(), customerID.String()).
		Delete(&CustomerRow{}).Error
	if err != nil {
		return classifyRemoteError(errorSubjectCustomer, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) DeleteTransaction(ctx context.Context, tenantID bottlebook.TenantID, transactionID bottlebook.TransactionID) error {
	err := store.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", tenantID.String(), transactionID.String()).
		Delete(&TransactionRow{}).Error
	if err != nil {
		return classifyRemoteError(errorSubjectTransaction, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) FetchCustomers(ctx context.Context, tenantID bottlebook.TenantID) ([]bottlebook.Customer, error) {
	var rows []CustomerRow
	err := store.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID.String()).
		Order("customer_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classifyRemoteError(errorSubjectCustomer, errorCodeFetch, err)
	}
	customers := make([]bottlebook.Customer, 0, len(rows))
	for _, row := range rows {
		customer, err := decodeCustomerRow(row)
		if err != nil {
			return nil, bottlebook.WrapError(errorOperationRemote, errorSubjectCustomer, errorCodeInvalid, err)
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (store *Store) FetchTransactions(ctx context.Context, tenantID bottlebook.TenantID) ([]bottlebook.Transaction, error) {
	var rows []TransactionRow
	err := store.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID.String()).
		Order("occurred_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, classifyRemoteError(errorSubjectTransaction, errorCodeFetch, err)
	}
	transactions := make([]bottlebook.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := decodeTransactionRow(row)
		if err != nil {
			return nil, bottlebook.WrapError(errorOperationRemote, errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func encodeTransactionRow(tenantID bottlebook.TenantID, transaction bottlebook.Transaction, now time.Time) (TransactionRow, error) {
	var items datatypes.JSON
	if len(transaction.Items) > 0 {
		documents := make([]bottlebook.TransactionItemDocument, 0, len(transaction.Items))
		for _, item := range transaction.Items {
			documents = append(documents, bottlebook.TransactionItemDocument{
				Category:     item.Category,
				Brand:        item.Brand,
				Size:         item.Size,
				BottleCount:  item.BottleCount.Int(),
				DepositCents: item.DepositCents.Int64(),
			})
		}
		raw, err := json.Marshal(documents)
		if err != nil {
			return TransactionRow{}, err
		}
		items = datatypes.JSON(raw)
	}
	return TransactionRow{
		TenantID:      tenantID.String(),
		TransactionID: transaction.TransactionID.String(),
		CustomerID:    transaction.CustomerID.String(),
		Type:          transaction.Type.String(),
		Category:      transaction.Category,
		Brand:         transaction.Brand,
		Size:          transaction.Size,
		BottleCount:   transaction.BottleCount.Int(),
		DepositCents:  transaction.DepositCents.Int64(),
		Items:         items,
		Notes:         transaction.Notes,
		OccurredAt:    time.Unix(transaction.TimestampUnixUTC, 0).UTC(),
		LastPushedAt:  now,
	}, nil
}

func decodeCustomerRow(row CustomerRow) (bottlebook.Customer, error) {
	return bottlebook.DecodeCustomer(bottlebook.CustomerDocument{
		ID:          row.CustomerID,
		Name:        row.Name,
		Phone:       row.Phone,
		Address:     row.Address,
		TrustStatus: row.TrustStatus,
	})
}

func decodeTransactionRow(row TransactionRow) (bottlebook.Transaction, error) {
	document := bottlebook.TransactionDocument{
		ID:           row.TransactionID,
		CustomerID:   row.CustomerID,
		Type:         row.Type,
		Category:     row.Category,
		Brand:        row.Brand,
		Size:         row.Size,
		BottleCount:  row.BottleCount,
		DepositCents: row.DepositCents,
		Notes:        row.Notes,
		Timestamp:    row.OccurredAt.Unix(),
	}
	if len(row.Items) > 0 {
		if err := json.Unmarshal(row.Items, &document.Items); err != nil {
			return bottlebook.Transaction{}, err
		}
	}
	return bottlebook.DecodeTransaction(document)
}

// classifyRemoteError separates "the server rejected this" from "the
// server could not be reached". A PgError means the server responded;
// anything network-shaped maps to ErrRemoteUnreachable so the engine
// reports offline instead of error.
func classifyRemoteError(subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return bottlebook.WrapError(errorOperationRemote, subject, code, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return bottlebook.WrapError(errorOperationRemote, subject, code,
			fmt.Errorf("%w: %v", cloudsync.ErrRemoteUnreachable, err))
	}
	if pgconn.Timeout(err) {
		return bottlebook.WrapError(errorOperationRemote, subject, code,
			fmt.Errorf("%w: %v", cloudsync.ErrRemoteUnreachable, err))
	}
	return bottlebook.WrapError(errorOperationRemote, subject, code, err)
}
