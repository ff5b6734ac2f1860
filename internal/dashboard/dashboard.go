// Package dashboard derives counters, buckets and alert sets from the
// normalized collections. Everything here is a pure function of its inputs.
package dashboard

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockmaster/console/internal/credit"
	"stockmaster/console/internal/domain"
)

type Summary struct {
	ProductCount  int             `json:"product_count"`
	LowStockCount int             `json:"low_stock_count"`
	OutOfStock    int             `json:"out_of_stock_count"`
	SalesCount    int             `json:"sales_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	ActiveCredit  int             `json:"active_credit_count"`
	OverdueCredit int             `json:"overdue_credit_count"`
	PaidCredit    int             `json:"paid_credit_count"`
	Outstanding   decimal.Decimal `json:"outstanding_credit"`
	NearDueCount  int             `json:"near_due_count"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// LowStock keeps products at or under their threshold, empty stock included.
func LowStock(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0)
	for _, p := range products {
		if p.Stock <= p.MinStock {
			out = append(out, p)
		}
	}
	return out
}

func LowStockCount(products []domain.Product) int {
	return len(LowStock(products))
}

func OutOfStockCount(products []domain.Product) int {
	count := 0
	for _, p := range products {
		if p.Stock <= 0 {
			count++
		}
	}
	return count
}

// TotalRevenue is accrual revenue: every sale counts from creation,
// whatever its payment state.
func TotalRevenue(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Total)
	}
	return total
}

// OutstandingCredit sums unpaid credit totals.
func OutstandingCredit(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sales {
		if s.IsCredit() && !s.IsPaid {
			total = total.Add(s.Total)
		}
	}
	return total
}

// NearDue returns Active credit sales due within credit.NearDueDays that are
// not in acknowledged. Status is recomputed against today; derived fields
// already present on the input are ignored.
func NearDue(sales []domain.Sale, today time.Time, acknowledged map[string]struct{}) []domain.Sale {
	out := make([]domain.Sale, 0)
	for _, s := range sales {
		if !credit.IsNearDue(s, today) {
			continue
		}
		if _, ok := acknowledged[s.ID]; ok {
			continue
		}
		out = append(out, credit.Derive(s, today))
	}
	return out
}

func IDs(sales []domain.Sale) []string {
	ids := make([]string, 0, len(sales))
	for _, s := range sales {
		ids = append(ids, s.ID)
	}
	return ids
}

type CreditView string

const (
	CreditViewActive  CreditView = "active"
	CreditViewOverdue CreditView = "overdue"
	CreditViewPaid    CreditView = "paid"
)

func ParseCreditView(raw string) (CreditView, bool) {
	switch CreditView(strings.ToLower(strings.TrimSpace(raw))) {
	case "", CreditViewActive:
		return CreditViewActive, true
	case CreditViewOverdue:
		return CreditViewOverdue, true
	case CreditViewPaid, "completed":
		return CreditViewPaid, true
	default:
		return "", false
	}
}

func (v CreditView) status() domain.SaleStatus {
	switch v {
	case CreditViewOverdue:
		return domain.SaleStatusOverdue
	case CreditViewPaid:
		return domain.SaleStatusCompleted
	default:
		return domain.SaleStatusActive
	}
}

// CreditSales returns credit sales in the given bucket whose sale date
// matches datePrefix (see MatchesDate).
func CreditSales(sales []domain.Sale, today time.Time, view CreditView, datePrefix string) []domain.Sale {
	want := view.status()
	out := make([]domain.Sale, 0)
	for _, s := range sales {
		if !s.IsCredit() || !MatchesDate(s.DateSold, datePrefix) {
			continue
		}
		derived := credit.Derive(s, today)
		if derived.Status == want {
			out = append(out, derived)
		}
	}
	return out
}

// MatchesDate compares a timestamp's YYYY-MM-DD rendering against a prefix
// such as "2025", "2025-01" or "2025-01-09". An empty prefix matches all.
func MatchesDate(at time.Time, prefix string) bool {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return true
	}
	return strings.HasPrefix(at.Format("2006-01-02"), prefix)
}

func SalesOn(sales []domain.Sale, today time.Time, datePrefix string) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if MatchesDate(s.DateSold, datePrefix) {
			out = append(out, credit.Derive(s, today))
		}
	}
	return out
}

// SearchProducts matches a case-insensitive substring of the product name.
func SearchProducts(products []domain.Product, term string) []domain.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]domain.Product(nil), products...)
	}
	out := make([]domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
		}
	}
	return out
}

func RoleBreakdown(users []domain.User) map[domain.Role]int {
	counts := make(map[domain.Role]int)
	for _, u := range users {
		counts[u.Role]++
	}
	return counts
}

func StatusBreakdown(users []domain.User) map[domain.AccountStatus]int {
	counts := make(map[domain.AccountStatus]int)
	for _, u := range users {
		counts[u.Status]++
	}
	return counts
}

func SalesTypeBreakdown(sales []domain.Sale) map[domain.SalesType]int {
	counts := make(map[domain.SalesType]int)
	for _, s := range sales {
		counts[s.SalesType]++
	}
	return counts
}

func CreditStatusBreakdown(sales []domain.Sale, today time.Time) map[domain.SaleStatus]int {
	counts := make(map[domain.SaleStatus]int)
	for _, s := range sales {
		if s.IsCredit() {
			counts[credit.StatusOf(s, today)]++
		}
	}
	return counts
}

// Summarize builds the dashboard header counters.
func Summarize(products []domain.Product, sales []domain.Sale, today time.Time, acknowledged map[string]struct{}, generatedAt time.Time) Summary {
	byStatus := CreditStatusBreakdown(sales, today)
	return Summary{
		ProductCount:  len(products),
		LowStockCount: LowStockCount(products),
		OutOfStock:    OutOfStockCount(products),
		SalesCount:    len(sales),
		TotalRevenue:  TotalRevenue(sales),
		ActiveCredit:  byStatus[domain.SaleStatusActive],
		OverdueCredit: byStatus[domain.SaleStatusOverdue],
		PaidCredit:    byStatus[domain.SaleStatusCompleted],
		Outstanding:   OutstandingCredit(sales),
		NearDueCount:  len(NearDue(sales, today, acknowledged)),
		GeneratedAt:   generatedAt,
	}
}
