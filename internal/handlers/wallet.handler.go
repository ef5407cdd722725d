package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/oneclick/wa-gateway/internal/model"
	xhttp "github.com/oneclick/wa-gateway/pkg/http"
	"github.com/shopspring/decimal"
)

type WalletService interface {
	Balance(ctx context.Context, clientID int64) (decimal.Decimal, string, error)
	TopUp(ctx context.Context, clientID int64, amount decimal.Decimal, description, referenceID string) (*model.LedgerTransaction, error)
	ListTransactions(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerTransaction, int64, error)
	AuditBalance(ctx context.Context, clientID int64) (stored, derived decimal.Decimal, err error)
}

type WalletHandler struct {
	svc WalletService
}

func RegisterWalletRoutes(e *router.Group, h *WalletHandler) {
	e.GET("/wallet/balance", h.GetBalance)
	e.POST("/wallet/topup", h.TopUp)
	e.GET("/wallet/transactions", h.ListTransactions)
	e.GET("/wallet/audit", h.AuditBalance)
}

func NewWalletHandler(walletService WalletService) *WalletHandler {
	return &WalletHandler{
		svc: walletService,
	}
}

type balanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

type topUpRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	ReferenceID string `json:"reference_id"`
}

type transactionListResponse struct {
	Items []*model.LedgerTransaction `json:"items"`
	Total int64                      `json:"total"`
}

type auditResponse struct {
	StoredBalance  string `json:"stored_balance"`
	DerivedBalance string `json:"derived_balance"`
	Consistent     bool   `json:"consistent"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *WalletHandler) GetBalance(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	balance, currency, err := h.svc.Balance(ctx, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, balanceResponse{Balance: balance.String(), Currency: currency})
}

func (h *WalletHandler) TopUp(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	var req topUpRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(ctx, 400, "amount must be a decimal string")
		return
	}

	txn, err := h.svc.TopUp(ctx, cid, amount, req.Description, req.ReferenceID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *WalletHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	f := model.LedgerFilter{ClientID: &cid, Desc: true}
	if v := query(ctx, "kind"); v != "" {
		kind := model.TransactionKind(strings.ToUpper(strings.TrimSpace(v)))
		f.Kind = &kind
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if n := queryInt(ctx, "limit"); n > 0 {
		f.Limit = n
	}
	if n := queryInt(ctx, "offset"); n > 0 {
		f.Offset = n
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, transactionListResponse{Items: items, Total: total})
}

func (h *WalletHandler) AuditBalance(ctx *xhttp.RequestCtx) {
	cid, err := clientID(ctx)
	if err != nil {
		writeError(ctx, 401, err.Error())
		return
	}

	stored, derived, err := h.svc.AuditBalance(ctx, cid)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, auditResponse{
		StoredBalance:  stored.String(),
		DerivedBalance: derived.String(),
		Consistent:     stored.Equal(derived),
	})
}
