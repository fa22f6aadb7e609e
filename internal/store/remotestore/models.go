package remotestore

import (
	"time"

	"gorm.io/datatypes"
)

// CustomerRow mirrors the remote customers table. Every row carries the
// owning tenant: isolation is enforced at the row level.
type CustomerRow struct {
	TenantID     string `gorm:"primaryKey"`
	CustomerID   string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Phone        string `gorm:"not null"`
	Address      string
	TrustStatus  string    `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	LastPushedAt time.Time `gorm:"not null"`
}

func (CustomerRow) TableName() string { return "bottlebook_customers" }

// TransactionRow mirrors the remote transactions table.
type TransactionRow struct {
	TenantID      string `gorm:"primaryKey"`
	TransactionID string `gorm:"primaryKey"`
	CustomerID    string `gorm:"not null;index:idx_remote_transactions_customer"`
	Type          string `gorm:"not null"`
	Category      string
	Brand         string
	Size          string
	BottleCount   int            `gorm:"not null"`
	DepositCents  int64          `gorm:"not null"`
	Items         datatypes.JSON `gorm:"type:jsonb"`
	Notes         string
	OccurredAt    time.Time `gorm:"not null"`
	LastPushedAt  time.Time `gorm:"not null"`
}

func (TransactionRow) TableName() string { return "bottlebook_transactions" }
