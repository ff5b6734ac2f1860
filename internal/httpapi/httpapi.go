package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockmaster/console/internal/dashboard"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/normalize"
	"stockmaster/console/internal/service"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/store"
)

type API struct {
	console       *service.Console
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(console *service.Console, allowedOrigin string) *API {
	return &API{
		console:       console,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/session", a.handleSession)
	mux.HandleFunc("/api/v1/session/login", a.handleLogin)
	mux.HandleFunc("/api/v1/session/register", a.handleRegister)
	mux.HandleFunc("/api/v1/session/logout", a.requireSession(a.handleLogout))

	mux.HandleFunc("/api/v1/dashboard", a.requireSession(a.handleDashboard))
	mux.HandleFunc("/api/v1/refresh", a.requireSession(a.handleRefresh))
	mux.HandleFunc("/api/v1/products", a.requireSession(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireSession(a.handleProductActions))
	mux.HandleFunc("/api/v1/sales", a.requireSession(a.handleSales))
	mux.HandleFunc("/api/v1/credit-sales", a.requireSession(a.handleCreditSales))
	mux.HandleFunc("/api/v1/credit-sales/", a.requireSession(a.handleCreditSaleActions))
	mux.HandleFunc("/api/v1/alerts/near-due", a.requireSession(a.handleNearDue))
	mux.HandleFunc("/api/v1/alerts/near-due/acknowledge", a.requireSession(a.handleAcknowledge))

	mux.HandleFunc("/api/v1/users", a.requireSession(a.handleUsers))
	mux.HandleFunc("/api/v1/users/", a.requireSession(a.handleUserActions))
	mux.HandleFunc("/api/v1/profile", a.requireSession(a.handleProfile))
	mux.HandleFunc("/api/v1/profile/password", a.requireSession(a.handlePassword))
	mux.HandleFunc("/api/v1/audit-logs", a.requireSession(a.handleAuditLogs))

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().UTC(),
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view, err := a.console.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.console.Refresh(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.console.Products(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": products})
	case http.MethodPost:
		var input domain.ProductInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.CreateProduct(r.Context(), input); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/"))
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	if strings.HasSuffix(tail, "/restock") {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		id := strings.Trim(strings.TrimSuffix(tail, "/restock"), "/")
		var req restockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.Restock(r.Context(), id, req.Quantity); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	if strings.Contains(tail, "/") {
		writeError(w, http.StatusNotFound, errors.New("unknown product action"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		var details domain.ProductDetails
		if err := decodeJSON(r, &details); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.UpdateProduct(r.Context(), tail, details); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case http.MethodDelete:
		if err := a.console.DeleteProduct(r.Context(), tail); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

// saleRequest carries the due date as a calendar date; it is read in the
// console's zone.
type saleRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	SoldBy        string `json:"sold_by"`
	ApprovedBy    string `json:"approved_by"`
	SalesType     string `json:"sales_type"`
	CustomerName  string `json:"customer_name"`
	CreditDueDate string `json:"credit_due_date"`
}

func (a *API) toSaleRequest(body saleRequest) (domain.SaleRequest, error) {
	req := domain.SaleRequest{
		ProductID:    body.ProductID,
		Quantity:     body.Quantity,
		SoldBy:       body.SoldBy,
		ApprovedBy:   body.ApprovedBy,
		SalesType:    domain.SalesType(body.SalesType),
		CustomerName: body.CustomerName,
	}
	if strings.TrimSpace(body.CreditDueDate) != "" {
		due, ok := normalize.ParseTime(body.CreditDueDate, a.console.Location())
		if !ok {
			return domain.SaleRequest{}, errors.New("credit_due_date must be a date (YYYY-MM-DD)")
		}
		req.CreditDueDate = &due
	}
	return req, nil
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.console.SalesLog(r.Context(), r.URL.Query().Get("date"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":   sales,
			"by_type": dashboard.SalesTypeBreakdown(sales),
			"revenue": dashboard.TotalRevenue(sales),
		})
	case http.MethodPost:
		var body saleRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req, err := a.toSaleRequest(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.CreateSale(r.Context(), req); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCreditSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	mode, ok := dashboard.ParseCreditView(r.URL.Query().Get("view"))
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("view must be active, overdue or paid"))
		return
	}
	sales, err := a.console.CreditSales(r.Context(), mode, r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":       sales,
		"outstanding": dashboard.OutstandingCredit(sales),
	})
}

func (a *API) handleCreditSaleActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/credit-sales/"), "/"))
	if !strings.HasSuffix(tail, "/mark-paid") {
		writeError(w, http.StatusNotFound, errors.New("unknown credit sale action"))
		return
	}
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimSuffix(tail, "/mark-paid"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("sale id required"))
		return
	}
	if err := a.console.MarkPaid(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (a *API) handleNearDue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	sales, err := a.console.NearDue(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sales})
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	ids, err := a.console.AcknowledgeNearDue(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": ids})
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	view, err := a.console.Users(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type roleRequest struct {
	Role string `json:"role"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// handleUserActions serves /users/{id} (DELETE), /users/{id}/role (PUT),
// /users/{id}/status (PUT) and /users/{id}/status/toggle (POST).
func (a *API) handleUserActions(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/users/"), "/"))
	parts := strings.Split(tail, "/")
	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("user id required"))
		return
	}
	action := strings.Join(parts[1:], "/")

	switch action {
	case "":
		if r.Method != http.MethodDelete {
			writeMethodNotAllowed(w)
			return
		}
		if err := a.console.DeleteUser(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "role":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w)
			return
		}
		var req roleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.ChangeUserRole(r.Context(), id, domain.Role(req.Role)); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "status":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w)
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := a.console.SetUserStatus(r.Context(), id, domain.AccountStatus(req.Status)); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case "status/toggle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		next, err := a.console.ToggleUserStatus(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": next})
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown user action"))
	}
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	var update domain.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	identity, err := a.console.UpdateProfile(r.Context(), update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (a *API) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}
	var change domain.PasswordChange
	if err := decodeJSON(r, &change); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.console.ChangePassword(r.Context(), change); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 50, 500)
	entries, err := a.console.AuditLogs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps console errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionInvalidated):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyPaid):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrNotCredit):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, normalize.ErrFeedUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the detail goes to the log.
	msg := err.Error()
	switch {
	case status == http.StatusBadGateway:
		log.Printf("upstream error: %v", err)
		msg = store.ErrUnavailable.Error()
	case status >= 500:
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
