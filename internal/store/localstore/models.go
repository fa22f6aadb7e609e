package localstore

import (
	"time"

	"gorm.io/datatypes"
)

// CustomerRecord mirrors the customers table.
type CustomerRecord struct {
	CustomerID   string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Phone        string `gorm:"not null;index:idx_customers_phone,unique"`
	Address      string
	TrustStatus  string `gorm:"not null"`
	LastSyncedAt *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (CustomerRecord) TableName() string { return "customers" }

// TransactionRecord mirrors the transactions table. Line items are kept
// as a JSON column; the summary columns are already denormalized from
// them at the mutation boundary.
type TransactionRecord struct {
	TransactionID string `gorm:"primaryKey"`
	CustomerID    string `gorm:"not null;index:idx_transactions_customer_occurred,priority:1"`
	Type          string `gorm:"not null"`
	Category      string
	Brand         string
	Size          string
	BottleCount   int            `gorm:"not null"`
	DepositCents  int64          `gorm:"not null"`
	Items         datatypes.JSON `gorm:""`
	Notes         string
	OccurredAt    time.Time `gorm:"not null;index:idx_transactions_customer_occurred,priority:2"`
	LastSyncedAt  *time.Time
	CreatedAt     time.Time `gorm:"not null"`
}

func (TransactionRecord) TableName() string { return "transactions" }

// PendingChangeRecord mirrors the pending_changes table. Seq preserves
// insertion order: the ledger must replay FIFO.
type PendingChangeRecord struct {
	Seq       uint64         `gorm:"primaryKey;autoIncrement"`
	ChangeID  string         `gorm:"not null;uniqueIndex"`
	Type      string         `gorm:"not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (PendingChangeRecord) TableName() string { return "pending_changes" }

// MetaRecord holds the scalar bookkeeping keys: schema version and
// last-sync timestamp.
type MetaRecord struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (MetaRecord) TableName() string { return "meta" }
