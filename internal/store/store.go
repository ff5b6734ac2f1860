package store

import (
	"context"
	"encoding/json"
	"errors"

	"stockmaster/console/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotCredit         = errors.New("not a credit sale")
	ErrAlreadyPaid       = errors.New("already paid")
	ErrForbidden         = errors.New("forbidden")
	ErrUnavailable       = errors.New("inventory service unavailable")
)

// Inventory is the external Inventory & Sales Service. List operations
// return the raw payload; callers normalize it.
type Inventory interface {
	ListProducts(ctx context.Context) (json.RawMessage, error)
	CreateProduct(ctx context.Context, input domain.ProductInput) error
	UpdateProductDetails(ctx context.Context, id string, details domain.ProductDetails) error
	AdjustStock(ctx context.Context, id string, newStock int) error
	DeleteProduct(ctx context.Context, id string) error

	ListSales(ctx context.Context) (json.RawMessage, error)
	CreateSale(ctx context.Context, req domain.SaleRequest) error
	MarkSalePaid(ctx context.Context, saleID string, approvedBy string) error

	ListUsers(ctx context.Context) (json.RawMessage, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) error
	UpdateUserStatus(ctx context.Context, id string, status domain.AccountStatus) error
	DeleteUser(ctx context.Context, id string) error

	CheckAccountActive(ctx context.Context, userID string) (bool, error)
	Login(ctx context.Context, email string, password string) (domain.LoginResult, error)
	Register(ctx context.Context, req domain.RegisterRequest) error
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) error
	ChangePassword(ctx context.Context, id string, change domain.PasswordChange) error
}

// Authenticator is implemented by Inventory clients that attach a bearer
// token to outgoing requests.
type Authenticator interface {
	SetToken(token string)
}

// AuditLog records operator mutations performed through the console.
type AuditLog interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
