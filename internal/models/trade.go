package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade direction.
const (
	TypeLong  = "LONG"
	TypeShort = "SHORT"
)

// Trade status values.
const (
	StatusOpen      = "OPEN"
	StatusWin       = "WIN"
	StatusLoss      = "LOSS"
	StatusBreakEven = "BREAK_EVEN"
	StatusMissed    = "MISSED"
)

// Trade outcome values.
const (
	OutcomeOpen   = "OPEN"
	OutcomeClosed = "CLOSED"
	OutcomeMissed = "MISSED"
)

// Trade is one logged position. IDs are caller-assigned and immutable, and
// every trade belongs to exactly one account.
//
// IsBalanceUpdated is the single source of truth for reconciliation: it is
// true iff this trade's PnL has been applied, net of trash/restore reversals,
// to the owning account's balance. Trashing does not reset it; the reconciler
// tracks reversal through the IsDeleted transition alone.
type Trade struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AccountID string `gorm:"type:varchar(64);not null;index" json:"accountId"`

	Symbol    string `json:"symbol"`
	Type      string `json:"type"` // LONG or SHORT
	OrderType string `json:"orderType"`
	Setup     string `json:"setup"`

	Status  string `json:"status"`
	Outcome string `json:"outcome"`

	EntryPrice decimal.Decimal     `gorm:"type:numeric(24,10);not null" json:"entryPrice"`
	ExitPrice  decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"exitPrice"`
	StopLoss   decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"stopLoss"`
	TakeProfit decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"takeProfit"`

	Quantity       decimal.Decimal     `gorm:"type:numeric(24,10);not null" json:"quantity"`
	Leverage       decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"leverage"`
	RiskPercentage decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"riskPercentage"`

	// Explicit column names: default GORM naming would turn "MainPnL" into
	// "main_pn_l".
	MainPnL decimal.Decimal     `gorm:"column:main_pnl;type:numeric(24,10);not null;default:0" json:"mainPnl"`
	PnL     decimal.Decimal     `gorm:"column:pnl;type:numeric(24,10);not null;default:0" json:"pnl"`
	Fees    decimal.Decimal     `gorm:"type:numeric(24,10);not null;default:0" json:"fees"`
	Balance decimal.NullDecimal `gorm:"type:numeric(24,10)" json:"balance"`

	CreatedAt time.Time  `json:"createdAt"`
	EntryDate *time.Time `json:"entryDate"`
	ExitDate  *time.Time `json:"exitDate"`

	EntryTime    string `json:"entryTime"`
	ExitTime     string `json:"exitTime"`
	EntrySession string `json:"entrySession"`
	ExitSession  string `json:"exitSession"`

	Notes          string `gorm:"type:text" json:"notes"`
	EmotionalNotes string `gorm:"type:text" json:"emotionalNotes"`

	Tags        StringList  `gorm:"type:text" json:"tags"`
	Screenshots StringList  `gorm:"type:text" json:"screenshots"`
	Partials    PartialList `gorm:"type:text" json:"partials"`

	IsDeleted        bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt        *time.Time `json:"deletedAt"`
	IsBalanceUpdated bool       `gorm:"not null;default:false" json:"isBalanceUpdated"`
}

// TableName overrides the default pluralization.
func (Trade) TableName() string {
	return "trades"
}
