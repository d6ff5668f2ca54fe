package ledger

import (
	"github.com/shopspring/decimal"

	"trade-journal-go/internal/models"
)

// Tags owned by the classifier. Their presence is recomputed from the price
// levels on every call; user-supplied tags are never touched.
const (
	TagPartial    = "#Partial"
	TagBreakEven  = "#Break-Even"
	TagTakeProfit = "#TP"
	TagStopLoss   = "#SL"
	TagEarlyExit  = "#Early-Exit"
	TagLateChased = "#Late-Chased"
)

var classifierTags = map[string]bool{
	TagPartial:    true,
	TagBreakEven:  true,
	TagTakeProfit: true,
	TagStopLoss:   true,
	TagEarlyExit:  true,
	TagLateChased: true,
}

// breakEvenTolerance is the fraction of the entry price within which an exit
// counts as flat: 0.01%, absorbing spread and slippage on a deliberate
// break-even close.
var breakEvenTolerance = decimal.New(1, -4)

// Classify derives the behavioral tags for a trade from its price levels.
// Pure function, no I/O: each classifier-owned tag is recomputed from scratch
// while every other tag in current passes through untouched.
//
// A trade without an exit price has no execution outcome yet, so only
// #Partial is refreshed and the exit-dependent tags are left as they were.
func Classify(current []string, tradeType string, entryPrice decimal.Decimal,
	exitPrice, takeProfit, stopLoss decimal.NullDecimal, partials models.PartialList) []string {

	tags := make([]string, 0, len(current)+3)

	if !exitPrice.Valid {
		for _, t := range current {
			if t != TagPartial {
				tags = append(tags, t)
			}
		}
		if len(partials) > 0 {
			tags = append(tags, TagPartial)
		}
		return tags
	}

	for _, t := range current {
		if !classifierTags[t] {
			tags = append(tags, t)
		}
	}
	if len(partials) > 0 {
		tags = append(tags, TagPartial)
	}

	exit := exitPrice.Decimal
	tolerance := entryPrice.Mul(breakEvenTolerance).Abs()
	breakEven := exit.Sub(entryPrice).Abs().LessThanOrEqual(tolerance)
	if breakEven {
		tags = append(tags, TagBreakEven)
	}

	switch tradeType {
	case models.TypeLong:
		if takeProfit.Valid {
			tp := takeProfit.Decimal
			if exit.GreaterThanOrEqual(tp) {
				tags = append(tags, TagTakeProfit)
			}
			if !breakEven && exit.GreaterThan(entryPrice) && exit.LessThan(tp) {
				tags = append(tags, TagEarlyExit)
			}
			if exit.GreaterThan(tp) {
				tags = append(tags, TagLateChased)
			}
		}
		if stopLoss.Valid && exit.LessThanOrEqual(stopLoss.Decimal) {
			tags = append(tags, TagStopLoss)
		}
	case models.TypeShort:
		if takeProfit.Valid {
			tp := takeProfit.Decimal
			if exit.LessThanOrEqual(tp) {
				tags = append(tags, TagTakeProfit)
			}
			if !breakEven && exit.LessThan(entryPrice) && exit.GreaterThan(tp) {
				tags = append(tags, TagEarlyExit)
			}
			if exit.LessThan(tp) {
				tags = append(tags, TagLateChased)
			}
		}
		if stopLoss.Valid && exit.GreaterThanOrEqual(stopLoss.Decimal) {
			tags = append(tags, TagStopLoss)
		}
	}

	return tags
}
