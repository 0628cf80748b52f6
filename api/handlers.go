/*
handlers.go - HTTP API handlers for the books engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every mutation to the consistency
  reducer through the books service.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                   List accounts
    POST   /api/accounts                   Create account
    PUT    /api/accounts                   Replace all accounts
    GET    /api/accounts/{id}              Get account
    PUT    /api/accounts/{id}              Update account
    DELETE /api/accounts/{id}              Delete account
    GET    /api/accounts/{id}/statement    Account statement for a period
    GET    /api/accounts/{id}/compare      Period-over-period comparison
    GET    /api/accounts/{id}/invoice      Card billing cycle
    GET    /api/accounts/{id}/card-summary Card spending headline

  Movements, Sales, Investments:
    Same CRUD shape as accounts. Every collection also has
    POST /api/{collection}/delete-many (cascades are unioned before
    deleting), and movements additionally POST /api/movements/batch.

  Audit:
    GET    /api/audit                      Recent operations, newest first

REQUEST FLOW:
  1. Parse HTTP request
  2. Build a ledger.Operation
  3. Apply through the books service (reduce, persist, swap)
  4. Serialize response from the returned store

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, consistency violations, invalid input
  - 404: Record not found
  - 500: Persistence failures, internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - books/service.go: The mutation pipeline behind Apply
*/
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/warp/ledger-engine/books"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Books *books.Service
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *books.Service) *Handler {
	return &Handler{Books: svc}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	writeJSON(w, http.StatusOK, store.Accounts)
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	account, ok := store.AccountByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var account ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	store, err := h.Books.Apply(r.Context(), ledger.Add(ledger.ColAccounts, account))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(store.Accounts, account.ID))
}

// UpdateAccount replaces an existing account.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var account ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	account.ID = chi.URLParam(r, "id")

	store, err := h.Books.Apply(r.Context(), ledger.Update(ledger.ColAccounts, account))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	updated, _ := store.AccountByID(account.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteAccount removes an account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	h.applyDelete(w, r, ledger.ColAccounts)
}

// DeleteAccounts removes several accounts.
func (h *Handler) DeleteAccounts(w http.ResponseWriter, r *http.Request) {
	h.applyDeleteMany(w, r, ledger.ColAccounts)
}

// ReplaceAccounts replaces the whole accounts collection.
func (h *Handler) ReplaceAccounts(w http.ResponseWriter, r *http.Request) {
	var accounts []ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&accounts); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]ledger.Record, len(accounts))
	for i, a := range accounts {
		records[i] = a
	}
	store, err := h.Books.Apply(r.Context(), ledger.Replace(ledger.ColAccounts, records))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Accounts)
}

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// GetStatement returns the statement for one account over a period.
// Query: from/to (YYYY-MM-DD) or month (YYYY-MM), plus optional
// status, kind, category, q filters. Defaults to the current month.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	store := h.Books.Snapshot()
	id := chi.URLParam(r, "id")
	if _, ok := store.AccountByID(id); !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	st := ledger.ComputeStatement(&store, id, period, parseFilter(r), ledger.Today())
	writeJSON(w, http.StatusOK, toStatementDTO(st))
}

// ComparePeriods returns the settled net of a period against the
// immediately preceding period of the same length.
func (h *Handler) ComparePeriods(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	store := h.Books.Snapshot()
	id := chi.URLParam(r, "id")
	if _, ok := store.AccountByID(id); !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	delta := ledger.ComparePeriods(&store, id, period, parseFilter(r), ledger.Today())
	writeJSON(w, http.StatusOK, toCompareDTO(delta))
}

// GetInvoice returns the billing cycle of a card account for a month.
// Query: month (YYYY-MM), defaults to the current month.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	store := h.Books.Snapshot()
	card, ok := store.AccountByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	invoice, ok := ledger.ResolveInvoice(&store, card, year, month)
	if !ok {
		writeError(w, http.StatusBadRequest, "Account has no closing day configured", nil)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(invoice))
}

// GetCardSummary returns the card spending headline for a month.
func (h *Handler) GetCardSummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	store := h.Books.Snapshot()
	card, ok := store.AccountByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toCardSummaryDTO(ledger.ComputeCardSummary(&store, card, year, month)))
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ListMovements returns all movements.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	writeJSON(w, http.StatusOK, store.Movements)
}

// GetMovement returns a single movement.
func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	movement, ok := store.MovementByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Movement not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, movement)
}

// CreateMovement creates a new movement.
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var movement ledger.LedgerEntry
	if err := json.NewDecoder(r.Body).Decode(&movement); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	store, err := h.Books.Apply(r.Context(), ledger.Add(ledger.ColMovements, movement))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(store.Movements, movement.ID))
}

// CreateMovements creates several movements in one operation.
func (h *Handler) CreateMovements(w http.ResponseWriter, r *http.Request) {
	var movements []ledger.LedgerEntry
	if err := json.NewDecoder(r.Body).Decode(&movements); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]ledger.Record, len(movements))
	for i, m := range movements {
		records[i] = m
	}
	store, err := h.Books.Apply(r.Context(), ledger.AddMany(ledger.ColMovements, records))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tail(store.Movements, len(movements)))
}

// UpdateMovement replaces a movement and propagates the change to its
// linked sale, group siblings, or mirror investment. The body may be the
// bare movement, or an UpdateMovementRequest carrying explicit aux values
// for the sale derived-field sync.
func (h *Handler) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var req UpdateMovementRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Movement.Kind == "" && req.Aux == nil {
		// Bare movement body, not the wrapper.
		if err := json.Unmarshal(body, &req.Movement); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	req.Movement.ID = chi.URLParam(r, "id")

	op := ledger.Update(ledger.ColMovements, req.Movement)
	if req.Aux != nil {
		op = op.WithSaleAux(ledger.SaleAux{
			Freight:      req.Aux.Freight,
			ProductValue: req.Aux.ProductValue,
		})
	}

	store, err := h.Books.Apply(r.Context(), op)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	updated, _ := store.MovementByID(req.Movement.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteMovement removes a movement and cascades over its links.
func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	h.applyDelete(w, r, ledger.ColMovements)
}

// DeleteMovements removes several movements, unioning cascades first.
func (h *Handler) DeleteMovements(w http.ResponseWriter, r *http.Request) {
	h.applyDeleteMany(w, r, ledger.ColMovements)
}

// ReplaceMovements replaces the whole movements collection.
func (h *Handler) ReplaceMovements(w http.ResponseWriter, r *http.Request) {
	var movements []ledger.LedgerEntry
	if err := json.NewDecoder(r.Body).Decode(&movements); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]ledger.Record, len(movements))
	for i, m := range movements {
		records[i] = m
	}
	store, err := h.Books.Apply(r.Context(), ledger.Replace(ledger.ColMovements, records))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Movements)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns all sales with their derived per-unit cost.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	dtos := make([]SaleDTO, len(store.Sales))
	for i, sale := range store.Sales {
		dtos[i] = SaleDTO{SaleRecord: sale, UnitCost: ledger.SaleUnitCost(&store, sale)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSale returns a single sale with its derived per-unit cost.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	sale, ok := store.SaleByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Sale not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, SaleDTO{SaleRecord: sale, UnitCost: ledger.SaleUnitCost(&store, sale)})
}

// CreateSale creates a new sale record.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var sale ledger.SaleRecord
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	store, err := h.Books.Apply(r.Context(), ledger.Add(ledger.ColSales, sale))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(store.Sales, sale.ID))
}

// UpdateSale replaces a sale record.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	var sale ledger.SaleRecord
	if err := json.NewDecoder(r.Body).Decode(&sale); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	sale.ID = chi.URLParam(r, "id")

	store, err := h.Books.Apply(r.Context(), ledger.Update(ledger.ColSales, sale))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	updated, _ := store.SaleByID(sale.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSale removes a sale record. Settlement movements referencing it
// are left in place.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	h.applyDelete(w, r, ledger.ColSales)
}

// DeleteSales removes several sale records.
func (h *Handler) DeleteSales(w http.ResponseWriter, r *http.Request) {
	h.applyDeleteMany(w, r, ledger.ColSales)
}

// ReplaceSales replaces the whole sales collection.
func (h *Handler) ReplaceSales(w http.ResponseWriter, r *http.Request) {
	var sales []ledger.SaleRecord
	if err := json.NewDecoder(r.Body).Decode(&sales); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]ledger.Record, len(sales))
	for i, s := range sales {
		records[i] = s
	}
	store, err := h.Books.Apply(r.Context(), ledger.Replace(ledger.ColSales, records))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Sales)
}

// =============================================================================
// INVESTMENT HANDLERS
// =============================================================================

// ListInvestments returns all partner investment transactions.
func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	writeJSON(w, http.StatusOK, store.Investments)
}

// GetInvestment returns a single investment transaction.
func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	store := h.Books.Snapshot()
	investment, ok := store.InvestmentByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Investment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, investment)
}

// CreateInvestment creates a new investment transaction.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var investment ledger.InvestmentTransaction
	if err := json.NewDecoder(r.Body).Decode(&investment); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	store, err := h.Books.Apply(r.Context(), ledger.Add(ledger.ColInvestments, investment))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created(store.Investments, investment.ID))
}

// UpdateInvestment replaces an investment transaction and propagates the
// change to its group siblings or mirror movement.
func (h *Handler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	var investment ledger.InvestmentTransaction
	if err := json.NewDecoder(r.Body).Decode(&investment); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	investment.ID = chi.URLParam(r, "id")

	store, err := h.Books.Apply(r.Context(), ledger.Update(ledger.ColInvestments, investment))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	updated, _ := store.InvestmentByID(investment.ID)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteInvestment removes an investment and cascades over its links.
func (h *Handler) DeleteInvestment(w http.ResponseWriter, r *http.Request) {
	h.applyDelete(w, r, ledger.ColInvestments)
}

// DeleteInvestments removes several investments, unioning cascades first.
func (h *Handler) DeleteInvestments(w http.ResponseWriter, r *http.Request) {
	h.applyDeleteMany(w, r, ledger.ColInvestments)
}

// ReplaceInvestments replaces the whole investments collection.
func (h *Handler) ReplaceInvestments(w http.ResponseWriter, r *http.Request) {
	var investments []ledger.InvestmentTransaction
	if err := json.NewDecoder(r.Body).Decode(&investments); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]ledger.Record, len(investments))
	for i, inv := range investments {
		records[i] = inv
	}
	store, err := h.Books.Apply(r.Context(), ledger.Replace(ledger.ColInvestments, records))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store.Investments)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// GetAudit returns recent operations, newest first.
// Query: limit (default 50).
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	entries, err := h.Books.RecentAudit(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}
	if entries == nil {
		entries = []books.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func (h *Handler) applyDelete(w http.ResponseWriter, r *http.Request, col ledger.Collection) {
	id := chi.URLParam(r, "id")
	if _, err := h.Books.Apply(r.Context(), ledger.Delete(col, id)); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) applyDeleteMany(w http.ResponseWriter, r *http.Request, col ledger.Collection) {
	var req DeleteManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "No ids given", nil)
		return
	}
	if _, err := h.Books.Apply(r.Context(), ledger.DeleteMany(col, req.IDs)); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// created picks the record to echo back after an add: by id when the client
// supplied one, otherwise the freshly appended tail record.
func created[T ledger.Record](records []T, id string) T {
	if id != "" {
		for _, record := range records {
			if record.RecordID() == id {
				return record
			}
		}
	}
	return records[len(records)-1]
}

// tail returns the last n records, the ones an addMany just appended.
func tail[T any](records []T, n int) []T {
	if n > len(records) {
		n = len(records)
	}
	return records[len(records)-n:]
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps reducer errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Record not found", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid operation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Operation failed", err)
	}
}
