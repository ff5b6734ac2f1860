package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultCategory = "Uncategorized"
	DefaultMinStock = 10
	WalkInCustomer  = "Walk-in"
	MissingValue    = "-"
)

type SalesType string

const (
	SalesTypeCash   SalesType = "Cash"
	SalesTypeCredit SalesType = "Credit"
)

// ParseSalesType accepts any casing. Unknown values are reported as not ok.
func ParseSalesType(raw string) (SalesType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return SalesTypeCash, true
	case "credit":
		return SalesTypeCredit, true
	default:
		return "", false
	}
}

type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "Active"
	SaleStatusOverdue   SaleStatus = "Overdue"
	SaleStatusCompleted SaleStatus = "Completed"
)

type ProductStatus string

const (
	ProductOutOfStock ProductStatus = "Out of Stock"
	ProductLowStock   ProductStatus = "Low Stock"
	ProductInStock    ProductStatus = "In Stock"
)

type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	MinStock  int             `json:"min_stock"`
	Status    ProductStatus   `json:"status"`
}

// StockStatus classifies the product by its current stock against its threshold.
func (p Product) StockStatus() ProductStatus {
	switch {
	case p.Stock <= 0:
		return ProductOutOfStock
	case p.Stock <= p.MinStock:
		return ProductLowStock
	default:
		return ProductInStock
	}
}

type Sale struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Total             decimal.Decimal `json:"total"`
	SoldBy            string          `json:"sold_by"`
	ApprovedBy        string          `json:"approved_by"`
	SalesType         SalesType       `json:"sales_type"`
	CustomerName      string          `json:"customer_name"`
	DateSold          time.Time       `json:"date_sold"`
	CreditDueDate     *time.Time      `json:"credit_due_date,omitempty"`
	PaymentApprovedBy *string         `json:"payment_approved_by,omitempty"`
	IsPaid            bool            `json:"is_paid"`

	// Derived on every read, never sent upstream.
	DaysRemaining *int       `json:"days_remaining,omitempty"`
	Status        SaleStatus `json:"status"`
}

func (s Sale) IsCredit() bool {
	return s.SalesType == SalesTypeCredit
}

type Role string

const (
	RoleViewer     Role = "Viewer"
	RoleUser       Role = "User"
	RoleManager    Role = "Manager"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// ParseRole normalizes case and spacing, so "super admin", "Super_Admin" and
// "SUPERADMIN" all resolve to RoleSuperAdmin.
func ParseRole(raw string) (Role, bool) {
	key := strings.ToLower(raw)
	key = strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "").Replace(key)
	switch key {
	case "viewer":
		return RoleViewer, true
	case "user":
		return RoleUser, true
	case "manager":
		return RoleManager, true
	case "admin":
		return RoleAdmin, true
	case "superadmin":
		return RoleSuperAdmin, true
	default:
		return Role(strings.TrimSpace(raw)), false
	}
}

type AccountStatus string

const (
	AccountPending  AccountStatus = "Pending"
	AccountActive   AccountStatus = "Active"
	AccountInactive AccountStatus = "Inactive"
)

func ParseAccountStatus(raw string) (AccountStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return AccountPending, true
	case "active":
		return AccountActive, true
	case "inactive":
		return AccountInactive, true
	default:
		return "", false
	}
}

type User struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Email       string        `json:"email"`
	Role        Role          `json:"role"`
	Status      AccountStatus `json:"status"`
	LastLoginAt *time.Time    `json:"last_login_at,omitempty"`
}

// Identity is the logged-in operator as returned by the login operation.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Identity Identity `json:"identity"`
	Token    string   `json:"token"`
}

type RegisterRequest struct {
	FullName        string `json:"full_name" validate:"required,min=2,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ProfileUpdate struct {
	FullName string `json:"full_name" validate:"required,min=2,max=150"`
	Email    string `json:"email" validate:"required,email"`
}

type PasswordChange struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=6"`
	Confirm string `json:"confirm_password" validate:"required,eqfield=New"`
}

type ProductInput struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"max=100"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"gte=0"`
	MinStock *int            `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
}

type ProductDetails struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"max=100"`
	Price    decimal.Decimal `json:"price"`
	MinStock int             `json:"min_stock" validate:"gte=0"`
}

type SaleRequest struct {
	ProductID     string     `json:"product_id" validate:"required"`
	Quantity      int        `json:"quantity" validate:"gt=0"`
	SoldBy        string     `json:"sold_by" validate:"required"`
	ApprovedBy    string     `json:"approved_by"`
	SalesType     SalesType  `json:"sales_type" validate:"required,oneof=Cash Credit"`
	CustomerName  string     `json:"customer_name" validate:"required_if=SalesType Credit"`
	CreditDueDate *time.Time `json:"credit_due_date,omitempty" validate:"required_if=SalesType Credit"`
}

type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	ActorRole  Role      `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}
