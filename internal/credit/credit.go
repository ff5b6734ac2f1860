// Package credit owns the credit-sale lifecycle: days remaining to due,
// the Active/Overdue/Completed state, and the Mark-Paid transition.
//
// Overdue is never stored. It is recomputed from the due date every time a
// sale is read, so the passage of time needs no write.
package credit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/store"
)

// NearDueDays is the inclusive horizon for the near-due alert feed.
const NearDueDays = 3

// Today returns now truncated to its calendar date in now's location.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// DaysBetween counts whole calendar days from `from` to `to`, each taken in
// its own location. Both are stripped of time-of-day first.
func DaysBetween(from time.Time, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// DaysRemaining is defined only for credit sales with a due date.
// A due date of today yields 0.
func DaysRemaining(sale domain.Sale, today time.Time) *int {
	if !sale.IsCredit() || sale.CreditDueDate == nil {
		return nil
	}
	days := DaysBetween(today, *sale.CreditDueDate)
	return &days
}

// StatusOf derives the lifecycle state of a sale as of today.
func StatusOf(sale domain.Sale, today time.Time) domain.SaleStatus {
	if !sale.IsCredit() || sale.IsPaid {
		return domain.SaleStatusCompleted
	}
	days := DaysRemaining(sale, today)
	if days == nil {
		// no due date: never overdue
		return domain.SaleStatusActive
	}
	if *days < 0 {
		return domain.SaleStatusOverdue
	}
	return domain.SaleStatusActive
}

// Derive returns a copy of sale with DaysRemaining and Status filled in.
func Derive(sale domain.Sale, today time.Time) domain.Sale {
	sale.DaysRemaining = DaysRemaining(sale, today)
	sale.Status = StatusOf(sale, today)
	return sale
}

func DeriveAll(sales []domain.Sale, today time.Time) []domain.Sale {
	out := make([]domain.Sale, len(sales))
	for i, s := range sales {
		out[i] = Derive(s, today)
	}
	return out
}

// IsNearDue reports an Active credit sale due within NearDueDays.
func IsNearDue(sale domain.Sale, today time.Time) bool {
	if StatusOf(sale, today) != domain.SaleStatusActive {
		return false
	}
	days := DaysRemaining(sale, today)
	return days != nil && *days <= NearDueDays
}

// CheckMarkPaid validates the Mark-Paid preconditions against the current
// view of the sale. It does not mutate anything.
func CheckMarkPaid(sale domain.Sale, approver string) error {
	if !sale.IsCredit() {
		return fmt.Errorf("%w: sale %s is a cash sale", store.ErrNotCredit, sale.ID)
	}
	if sale.IsPaid {
		return fmt.Errorf("%w: sale %s", store.ErrAlreadyPaid, sale.ID)
	}
	if strings.TrimSpace(approver) == "" {
		return fmt.Errorf("%w: approver name is required", store.ErrInvalidInput)
	}
	return nil
}

// MarkPaid applies the Completed transition to a copy of sale.
func MarkPaid(sale domain.Sale, approver string) (domain.Sale, error) {
	if err := CheckMarkPaid(sale, approver); err != nil {
		return sale, err
	}
	name := strings.TrimSpace(approver)
	sale.IsPaid = true
	sale.PaymentApprovedBy = &name
	sale.Status = domain.SaleStatusCompleted
	return sale, nil
}

// CheckNewSale validates a sale request against the product's current stock
// and the credit field requirements. today bounds the due date.
func CheckNewSale(req domain.SaleRequest, stock int, today time.Time) error {
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}
	if req.Quantity > stock {
		return fmt.Errorf("%w: requested %d, available %d", store.ErrInsufficientStock, req.Quantity, stock)
	}
	switch req.SalesType {
	case domain.SalesTypeCash:
		return nil
	case domain.SalesTypeCredit:
	default:
		return fmt.Errorf("%w: unknown sales type %q", store.ErrInvalidInput, req.SalesType)
	}
	if strings.TrimSpace(req.CustomerName) == "" || req.CreditDueDate == nil {
		return fmt.Errorf("%w: customer and due date are required for credit", store.ErrInvalidInput)
	}
	if DaysBetween(today, *req.CreditDueDate) < 0 {
		return fmt.Errorf("%w: due date is before the sale date", store.ErrInvalidInput)
	}
	return nil
}

// CanRecordSale reports whether the role may record a sale. Viewers are read-only.
func CanRecordSale(role domain.Role) bool {
	switch role {
	case domain.RoleUser, domain.RoleManager, domain.RoleAdmin, domain.RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// CanApprovePayment reports whether the role may settle a credit sale.
func CanApprovePayment(role domain.Role) bool {
	switch role {
	case domain.RoleManager, domain.RoleAdmin, domain.RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// IsRejection reports errors that mean "the request itself was wrong", as
// opposed to connectivity or session failures.
func IsRejection(err error) bool {
	return errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrInsufficientStock) ||
		errors.Is(err, store.ErrNotCredit) ||
		errors.Is(err, store.ErrAlreadyPaid) ||
		errors.Is(err, store.ErrForbidden)
}
