// Package remote talks to the Inventory & Sales Service over its REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/normalize"
	"stockmaster/console/internal/store"
)

const maxResponseBytes = 4 << 20

type Client struct {
	baseURL    string
	http       *http.Client
	normalizer *normalize.Normalizer

	mu    sync.RWMutex
	token string
}

func New(baseURL string, timeout time.Duration, normalizer *normalize.Normalizer) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if normalizer == nil {
		normalizer = normalize.New(time.Local)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		normalizer: normalizer,
	}
}

// SetToken sets the bearer token for subsequent requests. An empty token
// sends requests anonymously.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) ListProducts(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/products", nil)
}

func (c *Client) CreateProduct(ctx context.Context, input domain.ProductInput) error {
	minStock := domain.DefaultMinStock
	if input.MinStock != nil {
		minStock = *input.MinStock
	}
	_, err := c.do(ctx, http.MethodPost, "/api/products", map[string]any{
		"name":              input.Name,
		"category":          input.Category,
		"price":             json.Number(input.Price.String()),
		"stockQuantity":     input.Stock,
		"minStockThreshold": minStock,
	})
	return err
}

func (c *Client) UpdateProductDetails(ctx context.Context, id string, details domain.ProductDetails) error {
	_, err := c.do(ctx, http.MethodPut, "/api/products/details/"+url.PathEscape(id), map[string]any{
		"name":              details.Name,
		"category":          details.Category,
		"price":             json.Number(details.Price.String()),
		"minStockThreshold": details.MinStock,
	})
	return err
}

func (c *Client) AdjustStock(ctx context.Context, id string, newStock int) error {
	_, err := c.do(ctx, http.MethodPut, "/api/products/stock/"+url.PathEscape(id), map[string]any{
		"stockQuantity": newStock,
	})
	return err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/products/"+url.PathEscape(id), nil)
	return err
}

func (c *Client) ListSales(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/sales", nil)
}

func (c *Client) CreateSale(ctx context.Context, req domain.SaleRequest) error {
	body := map[string]any{
		"productId":  req.ProductID,
		"quantity":   req.Quantity,
		"soldBy":     req.SoldBy,
		"approvedBy": req.ApprovedBy,
		"salesType":  string(req.SalesType),
	}
	if req.SalesType == domain.SalesTypeCredit {
		body["customerName"] = req.CustomerName
		if req.CreditDueDate != nil {
			body["creditSaleDate"] = req.CreditDueDate.Format("2006-01-02")
		}
	}
	_, err := c.do(ctx, http.MethodPost, "/api/sales", body)
	return err
}

func (c *Client) MarkSalePaid(ctx context.Context, saleID string, approvedBy string) error {
	_, err := c.do(ctx, http.MethodPut, "/api/sales/mark-paid/"+url.PathEscape(saleID), map[string]any{
		"ApprovedBy": approvedBy,
	})
	var rerr *responseError
	if errors.As(err, &rerr) && rerr.code == http.StatusConflict {
		return fmt.Errorf("%w: %s", store.ErrAlreadyPaid, rerr.message)
	}
	return err
}

func (c *Client) ListUsers(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/users", nil)
}

func (c *Client) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	_, err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id)+"/role", map[string]any{
		"role": string(role),
	})
	return err
}

func (c *Client) UpdateUserStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	_, err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id)+"/status", map[string]any{
		"status": string(status),
	})
	return err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil)
	return err
}

// CheckAccountActive reads {"isActive": bool}. A missing flag is treated as
// active so a terse response never logs anyone out.
func (c *Client) CheckAccountActive(ctx context.Context, userID string) (bool, error) {
	payload, err := c.do(ctx, http.MethodGet, "/api/auth/check-status/"+url.PathEscape(userID), nil)
	if err != nil {
		return false, err
	}
	var body struct {
		IsActive *bool  `json:"isActive"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return false, fmt.Errorf("%w: check-status response: %v", store.ErrUnavailable, err)
	}
	if body.IsActive != nil {
		return *body.IsActive, nil
	}
	if status, ok := domain.ParseAccountStatus(body.Status); ok {
		return status == domain.AccountActive, nil
	}
	return true, nil
}

func (c *Client) Login(ctx context.Context, email string, password string) (domain.LoginResult, error) {
	payload, err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return domain.LoginResult{}, err
	}
	result, err := c.normalizer.LoginResult(payload)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]any{
		"fullName":        req.FullName,
		"email":           req.Email,
		"password":        req.Password,
		"confirmPassword": req.ConfirmPassword,
	})
	return err
}

func (c *Client) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error {
	_, err := c.do(ctx, http.MethodPut, "/api/auth/update-profile/"+url.PathEscape(id), map[string]any{
		"fullName": update.FullName,
		"email":    update.Email,
	})
	return err
}

func (c *Client) ChangePassword(ctx context.Context, id string, change domain.PasswordChange) error {
	_, err := c.do(ctx, http.MethodPut, "/api/auth/change-password/"+url.PathEscape(id), map[string]any{
		"currentPassword": change.Current,
		"newPassword":     change.New,
	})
	return err
}

func (c *Client) do(ctx context.Context, method string, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %v", store.ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", store.ErrUnavailable, method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, nil
	}
	return nil, statusError(resp.StatusCode, payload)
}

// responseError is a non-2xx answer mapped onto the store error taxonomy.
// A 403 is a rejected request, not a lost session.
type responseError struct {
	code    int
	kind    error
	message string
}

func (e *responseError) Error() string {
	if errors.Is(e.kind, store.ErrUnavailable) {
		return fmt.Sprintf("%v: status %d: %s", e.kind, e.code, e.message)
	}
	return fmt.Sprintf("%v: %s", e.kind, e.message)
}

func (e *responseError) Unwrap() error { return e.kind }

func statusError(code int, payload []byte) error {
	message := responseMessage(payload)
	if message == "" {
		message = http.StatusText(code)
	}
	kind := store.ErrUnavailable
	switch code {
	case http.StatusNotFound:
		kind = store.ErrNotFound
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnprocessableEntity:
		kind = store.ErrInvalidInput
	}
	return &responseError{code: code, kind: kind, message: message}
}

func responseMessage(payload []byte) string {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err == nil {
		for _, key := range []string{"message", "Message", "error", "title"} {
			var text string
			if raw, ok := body[key]; ok && json.Unmarshal(raw, &text) == nil && text != "" {
				return text
			}
		}
		return ""
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

var (
	_ store.Inventory     = (*Client)(nil)
	_ store.Authenticator = (*Client)(nil)
)
