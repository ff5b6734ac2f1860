package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockmaster/console/internal/cache"
	"stockmaster/console/internal/dashboard"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/normalize"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/store"
	"stockmaster/console/internal/store/memory"
)

const testPassword = "secret123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	console *Console
	inv     *memory.Store
	acks    *cache.MemoryAckStore
	clock   *testClock
}

func newFixture(t *testing.T, start time.Time, tokenTTL time.Duration) fixture {
	t.Helper()
	clock := &testClock{now: start}
	inv := memory.New(memory.Options{
		Secret:       strings.Repeat("k", 32),
		TokenTTL:     tokenTTL,
		SeedPassword: testPassword,
		HashCost:     bcrypt.MinCost,
		Now:          clock.Now,
		Location:     time.UTC,
	})
	acks := cache.NewMemoryAckStore()
	c := New(Options{
		Inventory:        inv,
		Acks:             acks,
		Audit:            memory.NewAuditLog(),
		Normalizer:       normalize.New(time.UTC),
		Now:              clock.Now,
		RefreshInterval:  time.Hour,
		LivenessInterval: time.Hour,
	})
	t.Cleanup(c.Close)
	return fixture{console: c, inv: inv, acks: acks, clock: clock}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (f fixture) login(t *testing.T, email string) session.Session {
	t.Helper()
	sess, err := f.console.Login(context.Background(), domain.LoginRequest{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return sess
}

func creditSale(productID string, qty int, customer string, due time.Time) domain.SaleRequest {
	return domain.SaleRequest{
		ProductID:     productID,
		Quantity:      qty,
		SalesType:     domain.SalesTypeCredit,
		CustomerName:  customer,
		CreditDueDate: &due,
	}
}

func findProduct(t *testing.T, c *Console, id string) domain.Product {
	t.Helper()
	products, err := c.Products(context.Background(), "")
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	for _, p := range products {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("product %s not loaded", id)
	return domain.Product{}
}

func onlyCreditSale(t *testing.T, c *Console, mode dashboard.CreditView) domain.Sale {
	t.Helper()
	sales, err := c.CreditSales(context.Background(), mode, "")
	if err != nil {
		t.Fatalf("credit sales: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 %s credit sale, got %d", mode, len(sales))
	}
	return sales[0]
}

func TestCreditSaleLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.January, 1).Add(10*time.Hour), 90*24*time.Hour)
	f.login(t, "manager@stockmaster.local")

	if err := f.console.CreateSale(ctx, creditSale("prd-rice", 3, "Abebe", day(2025, time.January, 10))); err != nil {
		t.Fatalf("create credit sale: %v", err)
	}
	if got := findProduct(t, f.console, "prd-rice").Stock; got != 17 {
		t.Fatalf("expected stock 17 after sale, got %d", got)
	}

	f.clock.Set(day(2025, time.January, 9).Add(9 * time.Hour))
	active := onlyCreditSale(t, f.console, dashboard.CreditViewActive)
	if active.DaysRemaining == nil || *active.DaysRemaining != 1 {
		t.Fatalf("expected 1 day remaining, got %v", active.DaysRemaining)
	}
	if !active.Total.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("expected total 300, got %s", active.Total)
	}
	nearDue, err := f.console.NearDue(ctx)
	if err != nil {
		t.Fatalf("near due: %v", err)
	}
	if len(nearDue) != 1 || nearDue[0].ID != active.ID {
		t.Fatalf("expected the sale to be near due, got %d alerts", len(nearDue))
	}

	f.clock.Set(day(2025, time.January, 11).Add(9 * time.Hour))
	overdue := onlyCreditSale(t, f.console, dashboard.CreditViewOverdue)
	if overdue.DaysRemaining == nil || *overdue.DaysRemaining != -1 {
		t.Fatalf("expected -1 days remaining, got %v", overdue.DaysRemaining)
	}
	nearDue, err = f.console.NearDue(ctx)
	if err != nil {
		t.Fatalf("near due: %v", err)
	}
	if len(nearDue) != 0 {
		t.Fatalf("overdue sales are not near due, got %d alerts", len(nearDue))
	}

	before, err := f.console.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if err := f.console.MarkPaid(ctx, overdue.ID); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	paid := onlyCreditSale(t, f.console, dashboard.CreditViewPaid)
	if !paid.IsPaid || paid.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected completed sale, got paid=%t status=%s", paid.IsPaid, paid.Status)
	}
	if paid.PaymentApprovedBy == nil || *paid.PaymentApprovedBy != "Mia Manager" {
		t.Fatalf("expected payment approver Mia Manager, got %v", paid.PaymentApprovedBy)
	}

	after, err := f.console.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !before.Summary.TotalRevenue.Equal(decimal.NewFromInt(300)) || !after.Summary.TotalRevenue.Equal(before.Summary.TotalRevenue) {
		t.Fatalf("revenue must stay 300 across payment, got %s then %s", before.Summary.TotalRevenue, after.Summary.TotalRevenue)
	}
	if after.Summary.PaidCredit != 1 || after.Summary.OverdueCredit != 0 {
		t.Fatalf("expected 1 paid and 0 overdue, got %d and %d", after.Summary.PaidCredit, after.Summary.OverdueCredit)
	}
	if len(after.LowStock) != after.Summary.LowStockCount {
		t.Fatalf("low stock list and counter disagree: %d listed, %d counted", len(after.LowStock), after.Summary.LowStockCount)
	}
}

func TestMarkPaidTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.March, 3), 24*time.Hour)
	f.login(t, "admin@stockmaster.local")

	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "Toko Jaya", day(2025, time.March, 20))); err != nil {
		t.Fatalf("create: %v", err)
	}
	sale := onlyCreditSale(t, f.console, dashboard.CreditViewActive)
	if err := f.console.MarkPaid(ctx, sale.ID); err != nil {
		t.Fatalf("first mark paid: %v", err)
	}
	if err := f.console.MarkPaid(ctx, sale.ID); !errors.Is(err, store.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	paid := onlyCreditSale(t, f.console, dashboard.CreditViewPaid)
	if *paid.PaymentApprovedBy != "Adi Admin" {
		t.Fatalf("expected approver to stay Adi Admin, got %s", *paid.PaymentApprovedBy)
	}

	entries, err := f.console.AuditLogs(ctx, 10)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	count := 0
	for _, e := range entries {
		if e.Action == "sale.mark_paid" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one mark_paid audit entry, got %d", count)
	}
}

func TestMarkPaidRejectsCashSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.March, 3), 24*time.Hour)
	f.login(t, "manager@stockmaster.local")

	err := f.console.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-coffee", Quantity: 2, SalesType: domain.SalesTypeCash})
	if err != nil {
		t.Fatalf("create cash sale: %v", err)
	}
	sales, err := f.console.SalesLog(ctx, "2025-03")
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected 1 sale in March, got %d (%v)", len(sales), err)
	}
	if sales[0].Status != domain.SaleStatusCompleted || sales[0].CustomerName != domain.WalkInCustomer {
		t.Fatalf("unexpected cash sale %+v", sales[0])
	}
	if err := f.console.MarkPaid(ctx, sales[0].ID); !errors.Is(err, store.ErrNotCredit) {
		t.Fatalf("expected ErrNotCredit, got %v", err)
	}
}

func TestCreateSaleOverStockLeavesStockUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.February, 1), 24*time.Hour)
	f.login(t, "user@stockmaster.local")

	err := f.console.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-rice", Quantity: 21, SalesType: domain.SalesTypeCash})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := findProduct(t, f.console, "prd-rice").Stock; got != 20 {
		t.Fatalf("expected stock to stay 20, got %d", got)
	}

	if err := f.console.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-rice", Quantity: 20, SalesType: domain.SalesTypeCash}); err != nil {
		t.Fatalf("selling the whole stock should succeed: %v", err)
	}
	rice := findProduct(t, f.console, "prd-rice")
	if rice.Stock != 0 || rice.Status != domain.ProductOutOfStock {
		t.Fatalf("expected out of stock, got %d %s", rice.Stock, rice.Status)
	}
}

func TestCreateCreditSaleRequiresCustomerAndDueDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.February, 1), 24*time.Hour)
	f.login(t, "user@stockmaster.local")

	err := f.console.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-oil", Quantity: 1, SalesType: domain.SalesTypeCredit})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	past := creditSale("prd-oil", 1, "Late Larry", day(2025, time.January, 20))
	if err := f.console.CreateSale(ctx, past); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected past due date to be rejected, got %v", err)
	}
	if got := findProduct(t, f.console, "prd-oil").Stock; got != 40 {
		t.Fatalf("expected stock unchanged at 40, got %d", got)
	}
}

func TestRoleGatesOnSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.February, 1), 24*time.Hour)

	f.login(t, "viewer@stockmaster.local")
	err := f.console.CreateSale(ctx, domain.SaleRequest{ProductID: "prd-oil", Quantity: 1, SalesType: domain.SalesTypeCash})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("viewer must not record sales, got %v", err)
	}

	f.login(t, "user@stockmaster.local")
	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "Kedai", day(2025, time.February, 5))); err != nil {
		t.Fatalf("user create: %v", err)
	}
	sale := onlyCreditSale(t, f.console, dashboard.CreditViewActive)
	if err := f.console.MarkPaid(ctx, sale.ID); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("user must not approve payments, got %v", err)
	}
	if err := f.console.Restock(ctx, "prd-oil", 5); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("user must not restock, got %v", err)
	}
}

func TestAcknowledgeNearDueIsBatchAndIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.April, 1), 24*time.Hour)
	sess := f.login(t, "manager@stockmaster.local")

	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "A", day(2025, time.April, 3))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "B", day(2025, time.April, 4))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "C", day(2025, time.April, 30))); err != nil {
		t.Fatalf("create: %v", err)
	}

	ids, err := f.console.AcknowledgeNearDue(ctx)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 acknowledged, got %d", len(ids))
	}
	members, _ := f.acks.Members(ctx, sess.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 stored acknowledgments, got %d", len(members))
	}

	nearDue, err := f.console.NearDue(ctx)
	if err != nil || len(nearDue) != 0 {
		t.Fatalf("expected no outstanding alerts, got %d (%v)", len(nearDue), err)
	}
	again, err := f.console.AcknowledgeNearDue(ctx)
	if err != nil || len(again) != 0 {
		t.Fatalf("expected empty acknowledge to be a no-op, got %v (%v)", again, err)
	}

	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "D", day(2025, time.April, 2))); err != nil {
		t.Fatalf("create: %v", err)
	}
	nearDue, err = f.console.NearDue(ctx)
	if err != nil || len(nearDue) != 1 || nearDue[0].CustomerName != "D" {
		t.Fatalf("expected only the new sale to alert, got %d (%v)", len(nearDue), err)
	}
}

func TestDeactivationTearsDownSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	sess := f.login(t, "user@stockmaster.local")

	if err := f.acks.Add(ctx, sess.ID, "sale-1"); err != nil {
		t.Fatalf("seed ack: %v", err)
	}
	if err := f.console.CheckLiveness(ctx); err != nil {
		t.Fatalf("active account must pass liveness: %v", err)
	}

	if err := f.inv.UpdateUserStatus(ctx, "usr-user", domain.AccountInactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := f.console.CheckLiveness(ctx); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("expected ErrSessionInvalidated, got %v", err)
	}
	if _, err := f.console.Dashboard(ctx); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("expected views to report invalidation, got %v", err)
	}
	members, _ := f.acks.Members(ctx, sess.ID)
	if len(members) != 0 {
		t.Fatalf("expected acknowledgments to be cleared, got %d", len(members))
	}

	if err := f.inv.UpdateUserStatus(ctx, "usr-user", domain.AccountActive); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	f.login(t, "user@stockmaster.local")
	if _, err := f.console.Dashboard(ctx); err != nil {
		t.Fatalf("new login must clear invalidation: %v", err)
	}
}

func TestDeletedAccountTearsDownSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "viewer@stockmaster.local")

	if err := f.inv.DeleteUser(ctx, "usr-viewer"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.console.CheckLiveness(ctx); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("expected ErrSessionInvalidated, got %v", err)
	}
}

func TestExpiredTokenEndsSession(t *testing.T) {
	f := newFixture(t, day(2025, time.May, 1), time.Hour)
	f.login(t, "user@stockmaster.local")

	f.clock.Set(day(2025, time.May, 1).Add(2 * time.Hour))
	if _, err := f.console.Session(); !errors.Is(err, session.ErrSessionInvalidated) {
		t.Fatalf("expected expired session to be invalidated, got %v", err)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "user@stockmaster.local")

	if err := f.console.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.console.Products(ctx, ""); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := f.console.Logout(ctx); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected second logout to report ErrNoSession, got %v", err)
	}
}

func TestLoginReplacesPreviousSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.April, 1), 24*time.Hour)
	first := f.login(t, "manager@stockmaster.local")

	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 1, "A", day(2025, time.April, 2))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ids, err := f.console.AcknowledgeNearDue(ctx); err != nil || len(ids) != 1 {
		t.Fatalf("expected one acknowledged sale, got %v (%v)", ids, err)
	}
	f.console.runMu.Lock()
	oldRefresher, oldLiveness := f.console.refresher, f.console.liveness
	f.console.runMu.Unlock()

	second := f.login(t, "admin@stockmaster.local")
	if second.ID == first.ID {
		t.Fatalf("expected a new session")
	}
	if oldRefresher.Running() || oldLiveness.Running() {
		t.Fatalf("replaced session's runners must be halted")
	}
	members, _ := f.acks.Members(ctx, first.ID)
	if len(members) != 0 {
		t.Fatalf("replaced session's acknowledgments must be cleared, got %v", members)
	}
	current, err := f.console.Session()
	if err != nil || current.ID != second.ID {
		t.Fatalf("expected the second session current, got %v (%v)", current.ID, err)
	}
	if _, err := f.console.Products(ctx, ""); err != nil {
		t.Fatalf("new session must stay usable: %v", err)
	}
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)

	err := f.console.Register(ctx, domain.RegisterRequest{
		FullName:        "Nia New",
		Email:           "nia@stockmaster.local",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err = f.console.Login(ctx, domain.LoginRequest{Email: "nia@stockmaster.local", Password: "hunter22"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("pending account must not log in, got %v", err)
	}

	err = f.console.Register(ctx, domain.RegisterRequest{
		FullName:        "Mismatch",
		Email:           "mm@stockmaster.local",
		Password:        "hunter22",
		ConfirmPassword: "hunter23",
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected confirmation mismatch to be rejected, got %v", err)
	}
}

func TestUsersViewForAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "admin@stockmaster.local")

	view, err := f.console.Users(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	for _, row := range view.Rows {
		if row.Role == domain.RoleSuperAdmin {
			t.Fatalf("admin must not see the super admin")
		}
		if row.ID == "usr-admin" && (row.Permissions.CanManageStatus || row.Permissions.CanDelete || row.Permissions.CanChangeRole) {
			t.Fatalf("no self-management allowed, got %+v", row.Permissions)
		}
		if row.ID == "usr-user" && (!row.Permissions.CanManageStatus || row.Permissions.CanChangeRole) {
			t.Fatalf("admin manages status of users but not roles, got %+v", row.Permissions)
		}
	}
	if len(view.AssignableRoles) != 0 {
		t.Fatalf("admin has no assignable roles, got %v", view.AssignableRoles)
	}

	if err := f.console.ChangeUserRole(ctx, "usr-user", domain.RoleManager); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("admin must not change roles, got %v", err)
	}
	next, err := f.console.ToggleUserStatus(ctx, "usr-user")
	if err != nil || next != domain.AccountInactive {
		t.Fatalf("expected toggle to Inactive, got %s (%v)", next, err)
	}
	if err := f.console.SetUserStatus(ctx, "usr-admin", domain.AccountInactive); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("self status change must be forbidden, got %v", err)
	}
}

func TestSuperAdminManagesRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "superadmin@stockmaster.local")

	view, err := f.console.Users(ctx)
	if err != nil {
		t.Fatalf("users: %v", err)
	}
	if len(view.Rows) != 5 || len(view.AssignableRoles) != 4 {
		t.Fatalf("expected 5 rows and 4 roles, got %d and %d", len(view.Rows), len(view.AssignableRoles))
	}
	if err := f.console.ChangeUserRole(ctx, "usr-user", domain.RoleManager); err != nil {
		t.Fatalf("change role: %v", err)
	}
	if err := f.console.ChangeUserRole(ctx, "usr-admin", domain.RoleSuperAdmin); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("SuperAdmin is not assignable, got %v", err)
	}
	if err := f.console.DeleteUser(ctx, "usr-superadmin"); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("self delete must be forbidden, got %v", err)
	}
	if err := f.console.DeleteUser(ctx, "usr-viewer"); err != nil {
		t.Fatalf("delete viewer: %v", err)
	}
	view, _ = f.console.Users(ctx)
	if len(view.Rows) != 4 || view.RoleCounts[domain.RoleManager] != 2 {
		t.Fatalf("expected 4 users with 2 managers, got %d and %d", len(view.Rows), view.RoleCounts[domain.RoleManager])
	}
}

func TestNonAdminCannotListUsers(t *testing.T) {
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "manager@stockmaster.local")

	if _, err := f.console.Users(context.Background()); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProductManagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "manager@stockmaster.local")

	if err := f.console.Restock(ctx, "prd-sugar", 12); err != nil {
		t.Fatalf("restock: %v", err)
	}
	sugar := findProduct(t, f.console, "prd-sugar")
	if sugar.Stock != 20 || sugar.Status != domain.ProductInStock {
		t.Fatalf("expected 20 in stock, got %d %s", sugar.Stock, sugar.Status)
	}
	if err := f.console.Restock(ctx, "prd-sugar", 0); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected zero restock to be rejected, got %v", err)
	}

	err := f.console.CreateProduct(ctx, domain.ProductInput{Name: "Tea Bags", Price: decimal.RequireFromString("9.80"), Stock: 4})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	found, err := f.console.Products(ctx, "tea")
	if err != nil || len(found) != 1 {
		t.Fatalf("expected to find the new product, got %d (%v)", len(found), err)
	}
	tea := found[0]
	if tea.MinStock != domain.DefaultMinStock || tea.Category != domain.DefaultCategory || tea.Status != domain.ProductLowStock {
		t.Fatalf("unexpected defaults %+v", tea)
	}

	err = f.console.UpdateProduct(ctx, tea.ID, domain.ProductDetails{Name: "Tea Bags 25s", Category: "Beverage", Price: decimal.NewFromInt(11), MinStock: 2})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if got := findProduct(t, f.console, tea.ID); got.Status != domain.ProductInStock || got.Name != "Tea Bags 25s" {
		t.Fatalf("unexpected product after update %+v", got)
	}
	if err := f.console.DeleteProduct(ctx, tea.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if found, _ := f.console.Products(ctx, "tea"); len(found) != 0 {
		t.Fatalf("expected product to be gone")
	}
}

func TestProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.May, 1), 24*time.Hour)
	f.login(t, "user@stockmaster.local")

	identity, err := f.console.UpdateProfile(ctx, domain.ProfileUpdate{FullName: "Una Updated", Email: "una@stockmaster.local"})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if identity.Name != "Una Updated" || identity.Email != "una@stockmaster.local" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	err = f.console.ChangePassword(ctx, domain.PasswordChange{Current: testPassword, New: "fresh-pass", Confirm: "fresh-pas"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected confirmation mismatch, got %v", err)
	}
	err = f.console.ChangePassword(ctx, domain.PasswordChange{Current: "wrong-one", New: "fresh-pass", Confirm: "fresh-pass"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected wrong current password to be rejected, got %v", err)
	}
	if err := f.console.ChangePassword(ctx, domain.PasswordChange{Current: testPassword, New: "fresh-pass", Confirm: "fresh-pass"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := f.console.Login(ctx, domain.LoginRequest{Email: "una@stockmaster.local", Password: "fresh-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

type failingInventory struct {
	store.Inventory
	failSales bool
}

func (f *failingInventory) ListSales(ctx context.Context) (json.RawMessage, error) {
	if f.failSales {
		return nil, store.ErrUnavailable
	}
	return f.Inventory.ListSales(ctx)
}

func TestRefreshFailureKeepsPreviousCollections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day(2025, time.June, 1), 24*time.Hour)
	wrapped := &failingInventory{Inventory: f.inv}
	f.console.inv = wrapped
	f.login(t, "manager@stockmaster.local")

	if err := f.console.CreateSale(ctx, creditSale("prd-oil", 2, "Keep", day(2025, time.June, 2))); err != nil {
		t.Fatalf("create: %v", err)
	}
	wrapped.failSales = true
	if err := f.console.Refresh(ctx); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	sales, err := f.console.SalesLog(ctx, "")
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected the previous sale to remain, got %d (%v)", len(sales), err)
	}
	if _, err := f.console.Session(); err != nil {
		t.Fatalf("connectivity errors must not end the session: %v", err)
	}
}
