package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"trade-journal-go/internal/config"
	"trade-journal-go/internal/ledger"
	"trade-journal-go/internal/models"
)

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log        *zap.Logger
	store      *ledger.TradeStore
	reconciler *ledger.BalanceReconciler
	batch      *ledger.BatchCoordinator
	limiter    *rate.Limiter
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *ledger.TradeStore, reconciler *ledger.BalanceReconciler,
	batch *ledger.BatchCoordinator, rl *config.RateLimit) *APIHandler {
	return &APIHandler{
		log:        log,
		store:      store,
		reconciler: reconciler,
		batch:      batch,
		limiter:    rate.NewLimiter(rate.Limit(rl.WritesPerSecond), rl.Burst),
	}
}

// Register wires the API routes. Mutating routes go through the write
// limiter; reads do not.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/accounts", h.limit(h.CreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", h.GetAccount)
	mux.HandleFunc("POST /api/accounts/{id}/balance", h.limit(h.AdjustBalance))
	mux.HandleFunc("POST /api/trades", h.limit(h.UpsertTrade))
	mux.HandleFunc("GET /api/trades/{id}", h.GetTrade)
	mux.HandleFunc("DELETE /api/trades/{id}", h.limit(h.HardDeleteTrade))
	mux.HandleFunc("POST /api/trades/batch", h.limit(h.BatchUpsert))
	mux.HandleFunc("POST /api/trades/trash", h.limit(h.TrashTrades))
	mux.HandleFunc("POST /api/trades/restore", h.limit(h.RestoreTrades))
}

func (h *APIHandler) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			http.Error(w, "too many write requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// looseDecimal decodes a numeric field that clients may send as a number, a
// numeric string, an empty string, or null. Anything unparseable is treated
// as absent rather than as zero.
type looseDecimal struct {
	decimal.NullDecimal
}

func (d *looseDecimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Valid = false
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := decimal.NewFromString(s)
	if err != nil {
		d.Valid = false
		return nil
	}
	d.Decimal = v
	d.Valid = true
	return nil
}

func (d looseDecimal) orZero() decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// tradeRequest is the inbound shape of a trade write.
type tradeRequest struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`

	Symbol    string `json:"symbol"`
	Type      string `json:"type"`
	OrderType string `json:"orderType"`
	Setup     string `json:"setup"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`

	EntryPrice looseDecimal `json:"entryPrice"`
	ExitPrice  looseDecimal `json:"exitPrice"`
	StopLoss   looseDecimal `json:"stopLoss"`
	TakeProfit looseDecimal `json:"takeProfit"`

	Quantity       looseDecimal `json:"quantity"`
	Leverage       looseDecimal `json:"leverage"`
	RiskPercentage looseDecimal `json:"riskPercentage"`

	MainPnL looseDecimal `json:"mainPnl"`
	PnL     looseDecimal `json:"pnl"`
	Fees    looseDecimal `json:"fees"`
	Balance looseDecimal `json:"balance"`

	EntryDate *time.Time `json:"entryDate"`
	ExitDate  *time.Time `json:"exitDate"`

	Notes          string `json:"notes"`
	EmotionalNotes string `json:"emotionalNotes"`

	Tags        []string         `json:"tags"`
	Screenshots []string         `json:"screenshots"`
	Partials    []models.Partial `json:"partials"`

	IsDeleted        bool `json:"isDeleted"`
	IsBalanceUpdated bool `json:"isBalanceUpdated"`

	// Write modifiers, not trade columns.
	BalanceDelta looseDecimal `json:"balanceDelta"`
	RefreshTags  bool         `json:"refreshTags"`
}

func (req *tradeRequest) toModel() *models.Trade {
	return &models.Trade{
		ID:               req.ID,
		AccountID:        req.AccountID,
		Symbol:           req.Symbol,
		Type:             req.Type,
		OrderType:        req.OrderType,
		Setup:            req.Setup,
		Status:           req.Status,
		Outcome:          req.Outcome,
		EntryPrice:       req.EntryPrice.orZero(),
		ExitPrice:        req.ExitPrice.NullDecimal,
		StopLoss:         req.StopLoss.NullDecimal,
		TakeProfit:       req.TakeProfit.NullDecimal,
		Quantity:         req.Quantity.orZero(),
		Leverage:         req.Leverage.NullDecimal,
		RiskPercentage:   req.RiskPercentage.NullDecimal,
		MainPnL:          req.MainPnL.orZero(),
		PnL:              req.PnL.orZero(),
		Fees:             req.Fees.orZero(),
		Balance:          req.Balance.NullDecimal,
		EntryDate:        req.EntryDate,
		ExitDate:         req.ExitDate,
		Notes:            req.Notes,
		EmotionalNotes:   req.EmotionalNotes,
		Tags:             req.Tags,
		Screenshots:      req.Screenshots,
		Partials:         req.Partials,
		IsDeleted:        req.IsDeleted,
		IsBalanceUpdated: req.IsBalanceUpdated,
	}
}

// UpsertTrade writes one trade, applying any explicit balance delta in the
// same transaction.
func (h *APIHandler) UpsertTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	stored, err := h.store.Upsert(r.Context(), req.toModel(), req.BalanceDelta.orZero(), req.RefreshTags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stored)
}

// GetTrade returns the stored row for an id.
func (h *APIHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	trade, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trade)
}

// HardDeleteTrade removes a trade row permanently. The trade must be trashed
// first; the ledger does not correct the balance on hard delete.
func (h *APIHandler) HardDeleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HardDelete(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type batchRequest struct {
	Trades      []tradeRequest `json:"trades"`
	RefreshTags bool           `json:"refreshTags"`
}

// BatchUpsert imports trades all-or-nothing.
func (h *APIHandler) BatchUpsert(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	trades := make([]*models.Trade, 0, len(req.Trades))
	for i := range req.Trades {
		trades = append(trades, req.Trades[i].toModel())
	}
	result, err := h.batch.BatchUpsert(r.Context(), trades, req.RefreshTags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

// TrashTrades soft-deletes trades and reverses their applied PnL.
func (h *APIHandler) TrashTrades(w http.ResponseWriter, r *http.Request) {
	h.flipTrades(w, r, h.reconciler.Trash)
}

// RestoreTrades undeletes trades and reapplies their PnL.
func (h *APIHandler) RestoreTrades(w http.ResponseWriter, r *http.Request) {
	h.flipTrades(w, r, h.reconciler.Restore)
}

func (h *APIHandler) flipTrades(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ids []string) ([]models.Trade, error)) {
	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	affected, err := op(r.Context(), req.IDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if affected == nil {
		affected = []models.Trade{}
	}
	h.writeJSON(w, http.StatusOK, affected)
}

type accountRequest struct {
	ID       string       `json:"id"`
	UserID   string       `json:"userId"`
	Name     string       `json:"name"`
	Currency string       `json:"currency"`
	Balance  looseDecimal `json:"balance"`
	IsDemo   bool         `json:"isDemo"`
	Type     string       `json:"type"`
}

// CreateAccount upserts an account.
func (h *APIHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	account, err := h.store.CreateAccount(r.Context(), &models.Account{
		ID:       req.ID,
		UserID:   req.UserID,
		Name:     req.Name,
		Currency: req.Currency,
		Balance:  req.Balance.orZero(),
		IsDemo:   req.IsDemo,
		Type:     req.Type,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// GetAccount returns the stored account row.
func (h *APIHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.store.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

type adjustBalanceRequest struct {
	Delta looseDecimal `json:"delta"`
}

// AdjustBalance applies an explicit deposit or withdrawal to an account.
func (h *APIHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req adjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, &ledger.ValidationError{Field: "body", Reason: err.Error()})
		return
	}
	if !req.Delta.Valid {
		h.writeError(w, &ledger.ValidationError{Field: "delta", Reason: "required"})
		return
	}
	accountID := r.PathValue("id")
	if err := h.store.AdjustBalance(r.Context(), accountID, req.Delta.Decimal); err != nil {
		h.writeError(w, err)
		return
	}
	account, err := h.store.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// writeError maps the ledger error taxonomy onto HTTP statuses, telling the
// client whether a blind retry is safe.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr   *ledger.ValidationError
		crossAccountErr *ledger.CrossAccountError
		constraintErr   *ledger.ConstraintError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &crossAccountErr):
		status = http.StatusConflict
	case errors.As(err, &constraintErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, gorm.ErrRecordNotFound):
		status = http.StatusNotFound
	case ledger.Retryable(err):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error(), Retryable: ledger.Retryable(err)})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
