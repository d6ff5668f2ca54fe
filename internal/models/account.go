package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance container. Balance is mutated only by the ledger
// reconciler or by explicit deposit/withdraw adjustments.
type Account struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string          `gorm:"type:varchar(64);index" json:"userId"`
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `gorm:"type:numeric(24,10);not null;default:0" json:"balance"`
	IsDemo    bool            `json:"isDemo"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// TableName overrides the default pluralization.
func (Account) TableName() string {
	return "accounts"
}
