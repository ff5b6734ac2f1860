package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/store"
)

const testPassword = "secret123"

var testNow = time.Date(2025, time.January, 5, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Options{
		Secret:       strings.Repeat("k", 32),
		TokenTTL:     time.Hour,
		SeedPassword: testPassword,
		HashCost:     bcrypt.MinCost,
		Now:          func() time.Time { return testNow },
		Location:     time.UTC,
	})
}

func productStock(t *testing.T, s *Store, id string) int {
	t.Helper()
	payload, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	var records []productRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec.StockQuantity
		}
	}
	t.Fatalf("product %s not listed", id)
	return 0
}

func listSales(t *testing.T, s *Store) []saleRecord {
	t.Helper()
	payload, err := s.ListSales(context.Background())
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	var records []saleRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("decode sales: %v", err)
	}
	return records
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	due := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	err := s.CreateSale(ctx, domain.SaleRequest{
		ProductID:     "prd-rice",
		Quantity:      3,
		SoldBy:        "Una User",
		SalesType:     domain.SalesTypeCredit,
		CustomerName:  "Ana",
		CreditDueDate: &due,
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := productStock(t, s, "prd-rice"); got != 17 {
		t.Fatalf("expected stock 17, got %d", got)
	}

	sales := listSales(t, s)
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(sales))
	}
	rec := sales[0]
	if rec.TotalPrice.String() != "300" || rec.ApprovedBy != "Una User" || rec.IsPaid {
		t.Fatalf("unexpected sale record: %+v", rec)
	}
	if rec.CreditSaleDate == nil || *rec.CreditSaleDate != "2025-01-10T00:00:00" {
		t.Fatalf("unexpected due date on the wire: %v", rec.CreditSaleDate)
	}
}

func TestRejectedSaleLeavesStockUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-sugar", Quantity: 9, SoldBy: "Una", SalesType: domain.SalesTypeCash})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	err = s.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-sugar", Quantity: 1, SoldBy: "Una", SalesType: domain.SalesTypeCredit})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for credit without customer, got %v", err)
	}
	if got := productStock(t, s, "prd-sugar"); got != 8 {
		t.Fatalf("expected stock untouched at 8, got %d", got)
	}
	if len(listSales(t, s)) != 0 {
		t.Fatalf("expected no sales recorded")
	}
}

func TestCashSaleDefaults(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateSale(context.Background(), domain.SaleRequest{ProductID: "prd-oil", Quantity: 2, SoldBy: "Una", SalesType: domain.SalesTypeCash}); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	rec := listSales(t, s)[0]
	if !rec.IsPaid || rec.CustomerName != domain.WalkInCustomer || rec.Status != string(domain.SaleStatusCompleted) {
		t.Fatalf("unexpected cash sale: %+v", rec)
	}
	if rec.TotalPrice.String() != "71" {
		t.Fatalf("expected total 71, got %s", rec.TotalPrice)
	}
}

func TestMarkSalePaidTwice(t *testing.T) {
	s := NewSeeded(Options{
		SeedPassword: testPassword,
		HashCost:     bcrypt.MinCost,
		Now:          func() time.Time { return testNow },
		Location:     time.UTC,
	})
	ctx := context.Background()

	var creditID string
	for _, rec := range listSales(t, s) {
		if rec.SalesType == string(domain.SalesTypeCredit) && !rec.IsPaid {
			creditID = rec.ID
			break
		}
	}
	if creditID == "" {
		t.Fatalf("expected a seeded unpaid credit sale")
	}

	if err := s.MarkSalePaid(ctx, creditID, "Mia Manager"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := s.MarkSalePaid(ctx, creditID, "Mia Manager"); !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if err := s.MarkSalePaid(ctx, "sale-missing", "Mia Manager"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoginSignsExpiringToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.Login(ctx, "Manager@StockMaster.local", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Identity.ID != "usr-manager" || result.Identity.Role != domain.RoleManager {
		t.Fatalf("unexpected identity: %+v", result.Identity)
	}
	if exp := session.TokenExpiry(result.Token); !exp.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("expected token expiry one hour out, got %s", exp)
	}

	if _, err := s.Login(ctx, "manager@stockmaster.local", "wrong"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected wrong password rejected, got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@stockmaster.local", testPassword); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown email rejected, got %v", err)
	}
}

func TestRegisterThenActivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Register(ctx, domain.RegisterRequest{FullName: "Nia New", Email: "nia@stockmaster.local", Password: "pass123", ConfirmPassword: "pass123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(ctx, domain.RegisterRequest{FullName: "Nia Two", Email: "NIA@stockmaster.local", Password: "pass123", ConfirmPassword: "pass123"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected duplicate email rejected, got %v", err)
	}
	if _, err := s.Login(ctx, "nia@stockmaster.local", "pass123"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected pending account refused, got %v", err)
	}

	s.mu.RLock()
	id, _ := s.accountIDByEmail("nia@stockmaster.local")
	s.mu.RUnlock()
	if err := s.UpdateUserStatus(ctx, id, domain.AccountActive); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := s.Login(ctx, "nia@stockmaster.local", "pass123"); err != nil {
		t.Fatalf("expected active account to log in, got %v", err)
	}
	active, err := s.CheckAccountActive(ctx, id)
	if err != nil || !active {
		t.Fatalf("expected active, got %v %v", active, err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.ChangePassword(ctx, "usr-user", domain.PasswordChange{Current: "nope", New: "newpass1", Confirm: "newpass1"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected wrong current password rejected, got %v", err)
	}
	if err := s.ChangePassword(ctx, "usr-user", domain.PasswordChange{Current: testPassword, New: "newpass1", Confirm: "newpass1"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := s.Login(ctx, "user@stockmaster.local", "newpass1"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	log := NewAuditLog()
	ctx := context.Background()
	at := time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)

	for _, action := range []string{"first", "second", "third"} {
		if err := log.Record(ctx, domain.AuditEntry{Action: action, ActorID: "usr-admin", CreatedAt: at}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := log.Record(ctx, domain.AuditEntry{Action: "older", ActorID: "usr-admin", CreatedAt: at.Add(-time.Hour)}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := log.List(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{entries[0].Action, entries[1].Action, entries[2].Action}
	if got[0] != "third" || got[1] != "second" || got[2] != "first" {
		t.Fatalf("expected newest first, got %v", got)
	}
}
