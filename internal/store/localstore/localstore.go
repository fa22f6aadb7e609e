package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	gosqlite "github.com/glebarez/go-sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// SchemaVersion is bumped whenever the on-device layout changes.
	// A mismatch on Prepare forces an explicit full local reset; there
	// is deliberately no migration path.
	SchemaVersion = 3

	metaKeySchemaVersion = "schema_version"
	metaKeyLastSyncAt    = "last_sync_at"

	sqliteConstraintCode = 19

	errorOperationStore     = "store"
	errorSubjectCustomer    = "customer"
	errorSubjectTransaction = "transaction"
	errorSubjectChange      = "pending_change"
	errorSubjectMeta        = "meta"
	errorCodeInsert         = "insert"
	errorCodeDelete         = "delete"
	errorCodeUpdate         = "update"
	errorCodeGet            = "get"
	errorCodeList           = "list"
	errorCodeCount          = "count"
	errorCodeInvalid        = "invalid"
	errorCodeEncode         = "encode"
	errorCodeDecode         = "decode"
	errorCodeReplace        = "replace"
)

// Store implements bottlebook.Store on a device-local SQLite database.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Prepare migrates the schema and checks the stored schema-version
// marker. A mismatch returns ErrMigrationRequired: the caller decides
// to reset, never this layer.
func (store *Store) Prepare(ctx context.Context) error {
	if err := store.db.WithContext(ctx).AutoMigrate(
		&CustomerRecord{},
		&TransactionRecord{},
		&PendingChangeRecord{},
		&MetaRecord{},
	); err != nil {
		return wrapStoreError(errorSubjectMeta, "migrate", err)
	}
	var meta MetaRecord
	err := store.db.WithContext(ctx).Where("key = ?", metaKeySchemaVersion).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.writeMeta(ctx, metaKeySchemaVersion, strconv.Itoa(SchemaVersion))
	}
	if err != nil {
		return wrapStoreError(errorSubjectMeta, errorCodeGet, err)
	}
	stored, err := strconv.Atoi(meta.Value)
	if err != nil || stored != SchemaVersion {
		return fmt.Errorf("%w: stored version %q, want %d", bottlebook.ErrMigrationRequired, meta.Value, SchemaVersion)
	}
	return nil
}

// Reset clears every collection and rewrites the schema-version marker.
func (store *Store) Reset(ctx context.Context) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		for _, model := range []interface{}{&CustomerRecord{}, &TransactionRecord{}, &PendingChangeRecord{}, &MetaRecord{}} {
			if err := transaction.Where("1 = 1").Delete(model).Error; err != nil {
				return wrapStoreError(errorSubjectMeta, "reset", err)
			}
		}
		return transaction.Clauses(clause.OnConflict{UpdateAll: true}).Create(&MetaRecord{
			Key:   metaKeySchemaVersion,
			Value: strconv.Itoa(SchemaVersion),
		}).Error
	})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore bottlebook.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) InsertCustomer(ctx context.Context, customer bottlebook.Customer) error {
	record := encodeCustomerRecord(customer)
	err := store.db.WithContext(ctx).Create(&record).Error
	if isConstraintViolation(err) {
		return wrapStoreError(errorSubjectCustomer, errorCodeInsert, bottlebook.ErrDuplicatePhone)
	}
	if err != nil {
		return wrapStoreError(errorSubjectCustomer, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) DeleteCustomer(ctx context.Context, customerID bottlebook.CustomerID) error {
	result := store.db.WithContext(ctx).Where("customer_id = ?", customerID.String()).Delete(&CustomerRecord{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCustomer, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCustomer, errorCodeDelete, bottlebook.ErrUnknownCustomer)
	}
	return nil
}

func (store *Store) UpdateCustomerTrust(ctx context.Context, customerID bottlebook.CustomerID, status bottlebook.TrustStatus) error {
	result := store.db.WithContext(ctx).
		Model(&CustomerRecord{}).
		Where("customer_id = ?", customerID.String()).
		Updates(map[string]interface{}{
			"trust_status":   status.String(),
			"last_synced_at": nil,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCustomer, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCustomer, errorCodeUpdate, bottlebook.ErrUnknownCustomer)
	}
	return nil
}

func (store *Store) GetCustomer(ctx context.Context, customerID bottlebook.CustomerID) (bottlebook.Customer, error) {
	var record CustomerRecord
	err := store.db.WithContext(ctx).Where("customer_id = ?", customerID.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bottlebook.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeGet, bottlebook.ErrUnknownCustomer)
	}
	if err != nil {
		return bottlebook.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeGet, err)
	}
	customer, err := decodeCustomerRecord(record)
	if err != nil {
		return bottlebook.Customer{}, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
	}
	return customer, nil
}

func (store *Store) FindCustomerByPhone(ctx context.Context, phone bottlebook.PhoneNumber) (bottlebook.Customer, bool, error) {
	var record CustomerRecord
	err := store.db.WithContext(ctx).Where("phone = ?", phone.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bottlebook.Customer{}, false, nil
	}
	if err != nil {
		return bottlebook.Customer{}, false, wrapStoreError(errorSubjectCustomer, errorCodeGet, err)
	}
	customer, err := decodeCustomerRecord(record)
	if err != nil {
		return bottlebook.Customer{}, false, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
	}
	return customer, true, nil
}

func (store *Store) ListCustomers(ctx context.Context) ([]bottlebook.Customer, error) {
	var records []CustomerRecord
	if err := store.db.WithContext(ctx).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, wrapStoreError(errorSubjectCustomer, errorCodeList, err)
	}
	customers := make([]bottlebook.Customer, 0, len(records))
	for _, record := range records {
		customer, err := decodeCustomerRecord(record)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction bottlebook.Transaction) error {
	record, err := encodeTransactionRecord(transaction)
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeEncode, err)
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) DeleteTransaction(ctx context.Context, transactionID bottlebook.TransactionID) error {
	result := store.db.WithContext(ctx).Where("transaction_id = ?", transactionID.String()).Delete(&TransactionRecord{})
	if result.Error != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectTransaction, errorCodeDelete, bottlebook.ErrUnknownTransaction)
	}
	return nil
}

func (store *Store) GetTransaction(ctx context.Context, transactionID bottlebook.TransactionID) (bottlebook.Transaction, error) {
	var record TransactionRecord
	err := store.db.WithContext(ctx).Where("transaction_id = ?", transactionID.String()).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bottlebook.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, bottlebook.ErrUnknownTransaction)
	}
	if err != nil {
		return bottlebook.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	transaction, err := decodeTransactionRecord(record)
	if err != nil {
		return bottlebook.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

func (store *Store) ListTransactions(ctx context.Context) ([]bottlebook.Transaction, error) {
	var records []TransactionRecord
	if err := store.db.WithContext(ctx).Order("occurred_at ASC").Find(&records).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return decodeTransactionRecords(records)
}

func (store *Store) ListCustomerTransactions(ctx context.Context, customerID bottlebook.CustomerID) ([]bottlebook.Transaction, error) {
	var records []TransactionRecord
	err := store.db.WithContext(ctx).
		Where("customer_id = ?", customerID.String()).
		Order("occurred_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return decodeTransactionRecords(records)
}

func (store *Store) AppendChange(ctx context.Context, change bottlebook.PendingChange) error {
	payload, err := encodeChangePayload(change.Payload)
	if err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeEncode, err)
	}
	record := PendingChangeRecord{
		ChangeID:  change.ChangeID.String(),
		Type:      change.Type.String(),
		Payload:   payload,
		CreatedAt: time.Unix(change.CreatedUnixUTC, 0).UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) ListChanges(ctx context.Context) ([]bottlebook.PendingChange, error) {
	var records []PendingChangeRecord
	if err := store.db.WithContext(ctx).Order("seq ASC").Find(&records).Error; err != nil {
		return nil, wrapStoreError(errorSubjectChange, errorCodeList, err)
	}
	changes := make([]bottlebook.PendingChange, 0, len(records))
	for _, record := range records {
		change, err := decodeChangeRecord(record)
		if err != nil {
			return nil, wrapStoreError(errorSubjectChange, errorCodeDecode, err)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func (store *Store) RemoveChanges(ctx context.Context, changeIDs []bottlebook.ChangeID) error {
	if len(changeIDs) == 0 {
		return nil
	}
	raw := make([]string, 0, len(changeIDs))
	for _, changeID := range changeIDs {
		raw = append(raw, changeID.String())
	}
	if err := store.db.WithContext(ctx).Where("change_id IN ?", raw).Delete(&PendingChangeRecord{}).Error; err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) ClearChanges(ctx context.Context) error {
	if err := store.db.WithContext(ctx).Where("1 = 1").Delete(&PendingChangeRecord{}).Error; err != nil {
		return wrapStoreError(errorSubjectChange, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) CountChanges(ctx context.Context) (int, error) {
	var count int64
	if err := store.db.WithContext(ctx).Model(&PendingChangeRecord{}).Count(&count).Error; err != nil {
		return 0, wrapStoreError(errorSubjectChange, errorCodeCount, err)
	}
	return int(count), nil
}

func (store *Store) MarkCustomerSynced(ctx context.Context, customerID bottlebook.CustomerID, syncedUnixUTC int64) error {
	syncedAt := time.Unix(syncedUnixUTC, 0).UTC()
	err := store.db.WithContext(ctx).
		Model(&CustomerRecord{}).
		Where("customer_id = ?", customerID.String()).
		Update("last_synced_at", &syncedAt).Error
	if err != nil {
		return wrapStoreError(errorSubjectCustomer, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) MarkTransactionSynced(ctx context.Context, transactionID bottlebook.TransactionID, syncedUnixUTC int64) error {
	syncedAt := time.Unix(syncedUnixUTC, 0).UTC()
	err := store.db.WithContext(ctx).
		Model(&TransactionRecord{}).
		Where("transaction_id = ?", transactionID.String()).
		Update("last_synced_at", &syncedAt).Error
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, err)
	}
	return nil
}

func (store *Store) ListDirtyCustomers(ctx context.Context) ([]bottlebook.Customer, error) {
	var records []CustomerRecord
	if err := store.db.WithContext(ctx).Where("last_synced_at IS NULL").Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, wrapStoreError(errorSubjectCustomer, errorCodeList, err)
	}
	customers := make([]bottlebook.Customer, 0, len(records))
	for _, record := range records {
		customer, err := decodeCustomerRecord(record)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCustomer, errorCodeInvalid, err)
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

func (store *Store) ListDirtyTransactions(ctx context.Context) ([]bottlebook.Transaction, error) {
	var records []TransactionRecord
	if err := store.db.WithContext(ctx).Where("last_synced_at IS NULL").Order("occurred_at ASC").Find(&records).Error; err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	return decodeTransactionRecords(records)
}

func (store *Store) MarkAllSynced(ctx context.Context, syncedUnixUTC int64) error {
	syncedAt := time.Unix(syncedUnixUTC, 0).UTC()
	err := store.db.WithContext(ctx).
		Model(&CustomerRecord{}).
		Where("last_synced_at IS NULL").
		Update("last_synced_at", &syncedAt).Error
	if err != nil {
		return wrapStoreError(errorSubjectCustomer, errorCodeUpdate, err)
	}
	err = store.db.WithContext(ctx).
		Model(&TransactionRecord{}).
		Where("last_synced_at IS NULL").
		Update("last_synced_at", &syncedAt).Error
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeUpdate, err)
	}
	return nil
}

// ReplaceAll wholesale-replaces both collections. Pull and import are
// authoritative overwrites, never merges.
func (store *Store) ReplaceAll(ctx context.Context, customers []bottlebook.Customer, transactions []bottlebook.Transaction) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("1 = 1").Delete(&CustomerRecord{}).Error; err != nil {
			return wrapStoreError(errorSubjectCustomer, errorCodeReplace, err)
		}
		if err := transaction.Where("1 = 1").Delete(&TransactionRecord{}).Error; err != nil {
			return wrapStoreError(errorSubjectTransaction, errorCodeReplace, err)
		}
		for _, customer := range customers {
			record := encodeCustomerRecord(customer)
			if err := transaction.Create(&record).Error; err != nil {
				return wrapStoreError(errorSubjectCustomer, errorCodeReplace, err)
			}
		}
		for _, entry := range transactions {
			record, err := encodeTransactionRecord(entry)
			if err != nil {
				return wrapStoreError(errorSubjectTransaction, errorCodeEncode, err)
			}
			if err := transaction.Create(&record).Error; err != nil {
				return wrapStoreError(errorSubjectTransaction, errorCodeReplace, err)
			}
		}
		return nil
	})
}

func (store *Store) LastSyncUnixUTC(ctx context.Context) (int64, error) {
	var meta MetaRecord
	err := store.db.WithContext(ctx).Where("key = ?", metaKeyLastSyncAt).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectMeta, errorCodeGet, err)
	}
	value, err := strconv.ParseInt(meta.Value, 10, 64)
	if err != nil {
		return 0, wrapStoreError(errorSubjectMeta, errorCodeInvalid, err)
	}
	return value, nil
}

func (store *Store) SetLastSyncUnixUTC(ctx context.Context, syncedUnixUTC int64) error {
	return store.writeMeta(ctx, metaKeyLastSyncAt, strconv.FormatInt(syncedUnixUTC, 10))
}

func (store *Store) writeMeta(ctx context.Context, key string, value string) error {
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&MetaRecord{Key: key, Value: value, UpdatedAt: time.Now().UTC()}).Error
	if err != nil {
		return wrapStoreError(errorSubjectMeta, errorCodeUpdate, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return bottlebook.WrapError(errorOperationStore, subject, code, err)
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func encodeCustomerRecord(customer bottlebook.Customer) CustomerRecord {
	return CustomerRecord{
		CustomerID:   customer.CustomerID.String(),
		Name:         customer.Name,
		Phone:        customer.Phone.String(),
		Address:      customer.Address,
		TrustStatus:  customer.TrustStatus.String(),
		LastSyncedAt: unixToTime(customer.LastSyncedUnixUTC),
	}
}

func decodeCustomerRecord(record CustomerRecord) (bottlebook.Customer, error) {
	customerID, err := bottlebook.NewCustomerID(record.CustomerID)
	if err != nil {
		return bottlebook.Customer{}, err
	}
	phone, err := bottlebook.NewPhoneNumber(record.Phone)
	if err != nil {
		return bottlebook.Customer{}, err
	}
	trust, err := bottlebook.ParseTrustStatus(record.TrustStatus)
	if err != nil {
		return bottlebook.Customer{}, err
	}
	return bottlebook.Customer{
		CustomerID:        customerID,
		Name:              record.Name,
		Phone:             phone,
		Address:           record.Address,
		TrustStatus:       trust,
		LastSyncedUnixUTC: timeToUnix(record.LastSyncedAt),
	}, nil
}

func encodeTransactionRecord(transaction bottlebook.Transaction) (TransactionRecord, error) {
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
			return TransactionRecord{}, err
		}
		items = datatypes.JSON(raw)
	}
	return TransactionRecord{
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
		LastSyncedAt:  unixToTime(transaction.LastSyncedUnixUTC),
	}, nil
}

func decodeTransactionRecord(record TransactionRecord) (bottlebook.Transaction, error) {
	document := bottlebook.TransactionDocument{
		ID:           record.TransactionID,
		CustomerID:   record.CustomerID,
		Type:         record.Type,
		Category:     record.Category,
		Brand:        record.Brand,
		Size:         record.Size,
		BottleCount:  record.BottleCount,
		DepositCents: record.DepositCents,
		Notes:        record.Notes,
		Timestamp:    record.OccurredAt.Unix(),
		LastSyncedAt: timeToUnix(record.LastSyncedAt),
	}
	if len(record.Items) > 0 {
		if err := json.Unmarshal(record.Items, &document.Items); err != nil {
			return bottlebook.Transaction{}, err
		}
	}
	return bottlebook.DecodeTransaction(document)
}

func decodeTransactionRecords(records []TransactionRecord) ([]bottlebook.Transaction, error) {
	transactions := make([]bottlebook.Transaction, 0, len(records))
	for _, record := range records {
		transaction, err := decodeTransactionRecord(record)
		if err != nil {
			return nil, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

type changePayloadDocument struct {
	Customer      *bottlebook.CustomerDocument    `json:"customer,omitempty"`
	CustomerID    string                          `json:"customerId,omitempty"`
	Transaction   *bottlebook.TransactionDocument `json:"transaction,omitempty"`
	TransactionID string                          `json:"transactionId,omitempty"`
}

func encodeChangePayload(payload bottlebook.ChangePayload) (datatypes.JSON, error) {
	var document changePayloadDocument
	switch typed := payload.(type) {
	case bottlebook.CustomerPayload:
		encoded := bottlebook.EncodeCustomer(typed.Customer)
		document.Customer = &encoded
	case bottlebook.CustomerDeletePayload:
		document.CustomerID = typed.CustomerID.String()
	case bottlebook.TransactionPayload:
		encoded := bottlebook.EncodeTransaction(typed.Transaction)
		document.Transaction = &encoded
	case bottlebook.TransactionDeletePayload:
		document.TransactionID = typed.TransactionID.String()
	default:
		return nil, fmt.Errorf("unsupported change payload %T", payload)
	}
	raw, err := json.Marshal(document)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeChangeRecord(record PendingChangeRecord) (bottlebook.PendingChange, error) {
	changeID, err := bottlebook.NewChangeID(record.ChangeID)
	if err != nil {
		return bottlebook.PendingChange{}, err
	}
	changeType, err := bottlebook.ParseChangeType(record.Type)
	if err != nil {
		return bottlebook.PendingChange{}, err
	}
	var document changePayloadDocument
	if err := json.Unmarshal(record.Payload, &document); err != nil {
		return bottlebook.PendingChange{}, err
	}
	payload, err := decodeChangePayload(changeType, document)
	if err != nil {
		return bottlebook.PendingChange{}, err
	}
	return bottlebook.PendingChange{
		ChangeID:       changeID,
		Type:           changeType,
		Payload:        payload,
		CreatedUnixUTC: record.CreatedAt.Unix(),
	}, nil
}

func decodeChangePayload(changeType bottlebook.ChangeType, document changePayloadDocument) (bottlebook.ChangePayload, error) {
	switch changeType {
	case bottlebook.ChangeAddCustomer, bottlebook.ChangeUpdateCustomer:
		if document.Customer == nil {
			return nil, fmt.Errorf("change %q missing customer payload", changeType)
		}
		customer, err := bottlebook.DecodeCustomer(*document.Customer)
		if err != nil {
			return nil, err
		}
		return bottlebook.CustomerPayload{Customer: customer}, nil
	case bottlebook.ChangeDeleteCustomer:
		customerID, err := bottlebook.NewCustomerID(document.CustomerID)
		if err != nil {
			return nil, err
		}
		return bottlebook.CustomerDeletePayload{CustomerID: customerID}, nil
	case bottlebook.ChangeAddTransaction:
		if document.Transaction == nil {
			return nil, fmt.Errorf("change %q missing transaction payload", changeType)
		}
		transaction, err := bottlebook.DecodeTransaction(*document.Transaction)
		if err != nil {
			return nil, err
		}
		return bottlebook.TransactionPayload{Transaction: transaction}, nil
	case bottlebook.ChangeDeleteTransaction:
		transactionID, err := bottlebook.NewTransactionID(document.TransactionID)
		if err != nil {
			return nil, err
		}
		return bottlebook.TransactionDeletePayload{TransactionID: transactionID}, nil
	}
	return nil, fmt.Errorf("unsupported change type %q", changeType)
}

func unixToTime(value *int64) *time.Time {
	if value == nil {
		return nil
	}
	converted := time.Unix(*value, 0).UTC()
	return &converted
}

func timeToUnix(value *time.Time) *int64 {
	if value == nil {
		return nil
	}
	converted := value.Unix()
	return &converted
}
