package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/motorent/backend/internal/middleware"
	"github.com/motorent/backend/internal/services"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	wallets   *services.WalletService
	validator *services.ValidationHelper
}

func NewWalletHandler(wallets *services.WalletService) *WalletHandler {
	return &WalletHandler{
		wallets:   wallets,
		validator: services.NewValidationHelper(),
	}
}

// GetWallet returns the balance and ledger entries for an account
// @Summary Get wallet statement
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} models.WalletStatement
// @Failure 403 {object} services.ErrorResponse
// @Router /wallet/{accountId} [get]
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.CallerIdentity(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	accountID := chi.URLParam(r, "accountId")
	if accountID != identity.AccountID && !identity.IsAdmin() {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	statement, err := h.wallets.Statement(r.Context(), accountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}
	services.SendJSONResponse(w, http.StatusOK, statement)
}

type depositRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=200"`
}

// Deposit credits a customer wallet (admin only)
// @Summary Deposit into a wallet
// @Description Credit an account wallet. Used by back office to load customer balances.
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Param request body depositRequest true "Deposit request"
// @Success 200 {object} object{balance=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallet/{accountId}/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
		return
	}

	description := req.Description
	if description == "" {
		description = "Wallet deposit"
	}

	balance, err := h.wallets.Credit(r.Context(), accountID, amount, description, uuid.NewString(), nil)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	services.SendJSONResponse(w, http.StatusOK, map[string]any{
		"balance": balance,
	})
}

// Reconcile checks a wallet's cached balance against its ledger sum (admin only)
// @Summary Reconcile a wallet
// @Description Recompute the ledger sum for an account. On divergence the wallet is frozen and reported; the ledger is never rewritten.
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account ID"
// @Success 200 {object} object{ledgerBalance=string}
// @Failure 500 {object} services.ErrorResponse
// @Router /wallet/{accountId}/reconcile [post]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	ledgerSum, err := h.wallets.Reconcile(r.Context(), accountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusForError(err), nil)
		return
	}

	services.SendJSONResponse(w, http.StatusOK, map[string]any{
		"ledgerBalance": ledgerSum,
	})
}
