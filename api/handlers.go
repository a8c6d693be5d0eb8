/*
handlers.go - HTTP handlers for the reward ledger's collaborators

PURPOSE:
  Exposes the reward ledger core to its in-process collaborators as REST
  endpoints. Handles HTTP request/response and JSON; all business rules
  live in the ledger/referral/voucher/exchange packages.

ENDPOINTS:
  Registration service:
    POST   /api/accounts                      Create account (+optional referral)
  Read surface:
    GET    /api/accounts/{id}/balance         Current point balance
    GET    /api/accounts/{id}/transactions    History, paged, newest first
    GET    /api/accounts/{id}/vouchers        Minted vouchers
  Order/Subscription service:
    POST   /api/events/order-completed        First-order milestone
    POST   /api/events/subscription-completed First-subscription milestone
  Checkout:
    GET    /api/vouchers/templates            Catalog with affordability
    POST   /api/vouchers/issue                Points -> voucher
    POST   /api/vouchers/validate             Dry-run a redemption
    POST   /api/vouchers/redeem               Apply voucher to an order
  Payout:
    POST   /api/exchange                      Points -> pending cash
  Admin service:
    POST   /api/admin/adjustments             Manual ledger correction
    POST   /api/admin/vouchers/{code}/deactivate

ERROR HANDLING:
  - 400: business-rule rejections (insufficient points, voucher not
         usable, invalid referral code, not authorized)
  - 404: unknown account/voucher/template
  - 409: concurrency conflicts that exhausted their retries
  - 500: everything else
  The core never logs request bodies; only transaction metadata crosses
  this boundary.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/swiftfix/reward-ledger/exchange"
	"github.com/swiftfix/reward-ledger/ledger"
	"github.com/swiftfix/reward-ledger/referral"
	"github.com/swiftfix/reward-ledger/voucher"
)

// Default reward rates applied to new accounts. Admins tune these
// per-account afterwards.
var (
	defaultCustomerTier1Points int64 = 50
	defaultCustomerTier2Points int64 = 20
	defaultAgentTier1Money           = "5"
	defaultAgentTier2Money           = "2"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Log        *ledger.Log
	Builder    *referral.Builder
	Calculator *referral.Calculator
	Catalog    *voucher.Catalog
	Issuer     *voucher.Issuer
	Redeemer   *voucher.Redeemer
	Exchange   *exchange.Engine
}

// NewHandler wires the engines over one store.
func NewHandler(store ledger.Store) *Handler {
	log := ledger.NewLog(store)
	catalog := voucher.NewCatalog(voucher.DefaultTemplates()...)
	return &Handler{
		Log:        log,
		Builder:    referral.NewBuilder(store),
		Calculator: referral.NewCalculator(log),
		Catalog:    catalog,
		Issuer:     voucher.NewIssuer(log, catalog),
		Redeemer:   voucher.NewRedeemer(log),
		Exchange:   exchange.NewEngine(log),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acctType := ledger.ReferrerType(req.Type)
	if acctType != ledger.ReferrerPropertyAgent && acctType != ledger.ReferrerCustomer {
		writeError(w, http.StatusBadRequest, "type must be PROPERTY_AGENT or CUSTOMER")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx := r.Context()
	store := h.Log.Store()

	// Strict registrations resolve the code before the account is created,
	// so a bad code leaves nothing behind.
	if req.ReferralCode != "" && req.StrictReferral {
		ref, err := store.AccountByReferralCode(ctx, req.ReferralCode)
		if err != nil || !ref.Active || ref.ID == ledger.AccountID(req.ID) {
			h.writeDomainError(w, fmt.Errorf("code %q: %w", req.ReferralCode, ledger.ErrInvalidReferralCode))
			return
		}
	}

	code, err := referral.NewReferralCode(ctx, store, acctType, h.Log.Now())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	acct := ledger.Account{
		ID:           ledger.AccountID(req.ID),
		ReferralCode: code,
		Type:         acctType,
		Active:       true,
		CreatedAt:    h.Log.Now(),
	}
	if acctType == ledger.ReferrerPropertyAgent {
		acct.RewardType = ledger.RewardMoney
		acct.CanExchangePointsForMoney = true
		acct.Tier1MoneyReward, _ = parseMoney(defaultAgentTier1Money)
		acct.Tier2MoneyReward, _ = parseMoney(defaultAgentTier2Money)
	} else {
		acct.RewardType = ledger.RewardPoints
		acct.Tier1PointsReward = defaultCustomerTier1Points
		acct.Tier2PointsReward = defaultCustomerTier2Points
	}

	if err := store.CreateAccount(ctx, acct); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var chain []ledger.ChainEntry
	if req.ReferralCode != "" {
		chain, err = h.Builder.Attach(ctx, acct.ID, req.ReferralCode)
		if err != nil {
			if req.StrictReferral || !errors.Is(err, ledger.ErrInvalidReferralCode) {
				h.writeDomainError(w, err)
				return
			}
			// Legacy path: a bad code doesn't block account creation.
			chain = nil
		}
	}

	if _, err := h.Calculator.RewardForEvent(ctx, referral.EventSignup, acct.ID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	created, err := h.Log.Account(ctx, acct.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := RegisterAccountResponse{Account: toAccountDTO(created)}
	for _, e := range chain {
		resp.Chain = append(resp.Chain, ChainEntryDTO{
			Tier:         e.Tier,
			ReferrerID:   string(e.ReferrerID),
			ReferrerType: string(e.ReferrerType),
			JoinedAt:     e.JoinedAt,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	balance, err := h.Log.Balance(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{AccountID: string(id), Balance: balance})
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	txs, err := h.Log.History(r.Context(), id, page, perPage)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetVouchers(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))
	vouchers, err := h.Log.Store().VouchersByOwner(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]VoucherDTO, 0, len(vouchers))
	for _, v := range vouchers {
		dtos = append(dtos, toVoucherDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MILESTONE EVENTS
// =============================================================================

func (h *Handler) OrderCompleted(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, referral.EventFirstOrder)
}

func (h *Handler) SubscriptionCompleted(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, referral.EventFirstSubscription)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request, event referral.Event) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	instructions, err := h.Calculator.RewardForEvent(r.Context(), event, ledger.AccountID(req.AccountID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]RewardInstructionDTO, 0, len(instructions))
	for _, inst := range instructions {
		dto := RewardInstructionDTO{
			Tier:       inst.Tier,
			ReferrerID: string(inst.ReferrerID),
			RewardType: string(inst.RewardType),
			Points:     inst.Points,
		}
		if inst.RewardType == ledger.RewardMoney {
			dto.Money = inst.Money.StringFixed(2)
		}
		if inst.Transaction != nil {
			dto.TransactionID = string(inst.Transaction.ID)
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	accountID := ledger.AccountID(r.URL.Query().Get("account"))
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "account query parameter is required")
		return
	}

	views, err := h.Catalog.List(r.Context(), h.Log, accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]TemplateViewDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, toTemplateViewDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) IssueVoucher(w http.ResponseWriter, r *http.Request) {
	var req IssueVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.TemplateID == "" {
		writeError(w, http.StatusBadRequest, "account_id and template_id are required")
		return
	}

	v, err := h.Issuer.IssueFromPoints(r.Context(), ledger.AccountID(req.AccountID), req.TemplateID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVoucherDTO(v))
}

func (h *Handler) ValidateVoucher(w http.ResponseWriter, r *http.Request) {
	var req RedeemVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	amount, err := parseMoney(req.OrderAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order_amount")
		return
	}

	res, err := h.Redeemer.Validate(r.Context(), req.Code, amount,
		ledger.AccountID(req.AccountID), ledger.VoucherCategory(req.Category))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ValidateVoucherResponse{Usable: res.Usable, Reason: string(res.Reason)}
	if res.Usable {
		resp.DiscountAmount = res.DiscountAmount.StringFixed(2)
		resp.FinalAmount = res.FinalAmount.StringFixed(2)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	var req RedeemVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.OrderID == "" {
		writeError(w, http.StatusBadRequest, "code and order_id are required")
		return
	}
	amount, err := parseMoney(req.OrderAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order_amount")
		return
	}

	res, err := h.Redeemer.Apply(r.Context(), req.Code, req.OrderID,
		ledger.AccountID(req.AccountID), amount, ledger.VoucherCategory(req.Category))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemVoucherResponse{
		DiscountAmount: res.DiscountAmount.StringFixed(2),
		FinalAmount:    res.FinalAmount.StringFixed(2),
		Voucher:        toVoucherDTO(res.Voucher),
	})
}

// =============================================================================
// EXCHANGE & ADMIN
// =============================================================================

func (h *Handler) ExchangePoints(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	res, err := h.Exchange.ExchangeForMoney(r.Context(), ledger.AccountID(req.AccountID), req.Points, req.Rate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExchangeResponse{
		MoneyAmount: res.MoneyAmount.StringFixed(2),
		NewBalance:  res.NewBalance,
	})
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "account_id and a non-zero delta are required")
		return
	}

	res, err := h.Log.Post(r.Context(), ledger.PostCommand{
		AccountID:   ledger.AccountID(req.AccountID),
		Delta:       req.Delta,
		Type:        ledger.TxAdminAdjustment,
		Description: req.Description,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(res.Transaction))
}

func (h *Handler) DeactivateVoucher(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	v, err := h.Redeemer.Deactivate(r.Context(), code)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case ledger.IsRetryable(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
