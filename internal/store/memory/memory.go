package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"stockmaster/console/internal/credit"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/store"
	"stockmaster/console/internal/xid"
)

const wireTimeLayout = "2006-01-02T15:04:05"

// Options configures the in-process Inventory & Sales Service.
type Options struct {
	Secret       string
	TokenTTL     time.Duration
	SeedPassword string
	HashCost     int
	Now          func() time.Time
	Location     *time.Location
}

// Store is an in-process stand-in for the Inventory & Sales Service. It keeps
// the same rules the service enforces and answers list calls with the
// PascalCase records the service emits.
type Store struct {
	mu       sync.RWMutex
	secret   []byte
	tokenTTL time.Duration
	hashCost int
	now      func() time.Time
	loc      *time.Location

	products map[string]domain.Product
	sales    []domain.Sale
	users    map[string]account
}

type account struct {
	user     domain.User
	password string
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

// New returns a store holding the seed catalog and seed accounts, with no sales.
func New(opts Options) *Store {
	if opts.Secret == "" {
		opts.Secret = "dev-change-me"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 8 * time.Hour
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.SeedPassword == "" {
		opts.SeedPassword = "admin123"
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD to override.")
	}

	s := &Store{
		secret:   []byte(opts.Secret),
		tokenTTL: opts.TokenTTL,
		hashCost: opts.HashCost,
		now:      opts.Now,
		loc:      opts.Location,
		products: make(map[string]domain.Product),
		sales:    make([]domain.Sale, 0, 64),
		users:    make(map[string]account),
	}
	for _, p := range seedProducts() {
		s.products[p.ID] = p
	}
	s.seedUsers(opts.SeedPassword)
	return s
}

// NewSeeded adds a handful of demo sales dated around the current day.
func NewSeeded(opts Options) *Store {
	s := New(opts)
	today := credit.Today(s.now().In(s.loc))
	due := func(days int) *time.Time {
		t := today.AddDate(0, 0, days)
		return &t
	}
	demo := []domain.SaleRequest{
		{ProductID: "prd-rice", Quantity: 2, SoldBy: "Una User", SalesType: domain.SalesTypeCash},
		{ProductID: "prd-oil", Quantity: 3, SoldBy: "Una User", SalesType: domain.SalesTypeCredit, CustomerName: "Toko Sinar", CreditDueDate: due(2)},
		{ProductID: "prd-sugar", Quantity: 5, SoldBy: "Mia Manager", ApprovedBy: "Mia Manager", SalesType: domain.SalesTypeCredit, CustomerName: "Warung Bu Tini", CreditDueDate: due(14)},
	}
	for _, req := range demo {
		if err := s.CreateSale(context.Background(), req); err != nil {
			log.Printf("[memory-store] WARN: demo sale not seeded: %v", err)
		}
	}
	return s
}

func seedProducts() []domain.Product {
	return []domain.Product{
		{ID: "prd-rice", Name: "Rice 5kg", Category: "Grocery", UnitPrice: decimal.NewFromInt(100), Stock: 20, MinStock: 5},
		{ID: "prd-oil", Name: "Cooking Oil 2L", Category: "Grocery", UnitPrice: decimal.RequireFromString("35.50"), Stock: 40, MinStock: 10},
		{ID: "prd-sugar", Name: "Sugar 1kg", Category: "Grocery", UnitPrice: decimal.RequireFromString("17.40"), Stock: 8, MinStock: 10},
		{ID: "prd-soap", Name: "Bath Soap", Category: "Household", UnitPrice: decimal.RequireFromString("7.40"), Stock: 0, MinStock: 10},
		{ID: "prd-coffee", Name: "Coffee Sachet", Category: "Beverage", UnitPrice: decimal.RequireFromString("2.60"), Stock: 120, MinStock: 25},
	}
}

func (s *Store) seedUsers(password string) {
	seeds := []domain.User{
		{ID: "usr-superadmin", Name: "Sara Super", Email: "superadmin@stockmaster.local", Role: domain.RoleSuperAdmin, Status: domain.AccountActive},
		{ID: "usr-admin", Name: "Adi Admin", Email: "admin@stockmaster.local", Role: domain.RoleAdmin, Status: domain.AccountActive},
		{ID: "usr-manager", Name: "Mia Manager", Email: "manager@stockmaster.local", Role: domain.RoleManager, Status: domain.AccountActive},
		{ID: "usr-user", Name: "Una User", Email: "user@stockmaster.local", Role: domain.RoleUser, Status: domain.AccountActive},
		{ID: "usr-viewer", Name: "Vic Viewer", Email: "viewer@stockmaster.local", Role: domain.RoleViewer, Status: domain.AccountActive},
	}
	for _, u := range seeds {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.Email, err)
		}
		s.users[u.ID] = account{user: u, password: string(hash)}
	}
}

type productRecord struct {
	ID                string          `json:"Id"`
	Name              string          `json:"Name"`
	Category          string          `json:"Category"`
	Price             decimal.Decimal `json:"Price"`
	StockQuantity     int             `json:"StockQuantity"`
	MinStockThreshold int             `json:"MinStockThreshold"`
}

type saleRecord struct {
	ID                string          `json:"Id"`
	ProductID         string          `json:"ProductId"`
	ProductName       string          `json:"ProductName"`
	Quantity          int             `json:"Quantity"`
	UnitPrice         decimal.Decimal `json:"UnitPrice"`
	TotalPrice        decimal.Decimal `json:"TotalPrice"`
	SoldBy            string          `json:"SoldBy"`
	ApprovedBy        string          `json:"ApprovedBy"`
	SalesType         string          `json:"SalesType"`
	CustomerName      string          `json:"CustomerName"`
	DateSold          string          `json:"DateSold"`
	CreditSaleDate    *string         `json:"CreditSaleDate"`
	PaymentApprovedBy *string         `json:"PaymentApprovedBy"`
	IsPaid            bool            `json:"IsPaid"`
	Status            string          `json:"Status"`
}

type userRecord struct {
	ID          string  `json:"Id"`
	FullName    string  `json:"FullName"`
	Email       string  `json:"Email"`
	Role        string  `json:"Role"`
	Status      string  `json:"Status"`
	LastLoginAt *string `json:"LastLoginAt"`
}

func (s *Store) ListProducts(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]productRecord, 0, len(s.products))
	for _, p := range s.products {
		records = append(records, productRecord{
			ID:                p.ID,
			Name:              p.Name,
			Category:          p.Category,
			Price:             p.UnitPrice,
			StockQuantity:     p.Stock,
			MinStockThreshold: p.MinStock,
		})
	}
	slices.SortFunc(records, func(a, b productRecord) int {
		return strings.Compare(a.Name, b.Name)
	})
	return json.Marshal(records)
}

func (s *Store) CreateProduct(_ context.Context, input domain.ProductInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(input.Name)
	if name == "" || input.Price.IsNegative() || input.Stock < 0 {
		return fmt.Errorf("%w: product name, price and stock are required", store.ErrInvalidInput)
	}
	for _, p := range s.products {
		if strings.EqualFold(p.Name, name) {
			return fmt.Errorf("%w: product %q already exists", store.ErrInvalidInput, name)
		}
	}
	minStock := domain.DefaultMinStock
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return fmt.Errorf("%w: minimum stock cannot be negative", store.ErrInvalidInput)
		}
		minStock = *input.MinStock
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = domain.DefaultCategory
	}

	p := domain.Product{
		ID:        xid.New("prd"),
		Name:      name,
		Category:  category,
		UnitPrice: input.Price,
		Stock:     input.Stock,
		MinStock:  minStock,
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) UpdateProductDetails(_ context.Context, id string, details domain.ProductDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	name := strings.TrimSpace(details.Name)
	if name == "" || details.Price.IsNegative() || details.MinStock < 0 {
		return fmt.Errorf("%w: product name, price and minimum stock are required", store.ErrInvalidInput)
	}
	p.Name = name
	p.Category = strings.TrimSpace(details.Category)
	if p.Category == "" {
		p.Category = domain.DefaultCategory
	}
	p.UnitPrice = details.Price
	p.MinStock = details.MinStock
	s.products[id] = p
	return nil
}

func (s *Store) AdjustStock(_ context.Context, id string, newStock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	if newStock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", store.ErrInvalidInput)
	}
	p.Stock = newStock
	s.products[id] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListSales(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]saleRecord, 0, len(s.sales))
	for i := len(s.sales) - 1; i >= 0; i-- {
		records = append(records, s.saleRecord(s.sales[i]))
	}
	return json.Marshal(records)
}

func (s *Store) saleRecord(sale domain.Sale) saleRecord {
	rec := saleRecord{
		ID:                sale.ID,
		ProductID:         sale.ProductID,
		ProductName:       sale.ProductName,
		Quantity:          sale.Quantity,
		UnitPrice:         sale.UnitPrice,
		TotalPrice:        sale.Total,
		SoldBy:            sale.SoldBy,
		ApprovedBy:        sale.ApprovedBy,
		SalesType:         string(sale.SalesType),
		CustomerName:      sale.CustomerName,
		DateSold:          sale.DateSold.In(s.loc).Format(wireTimeLayout),
		PaymentApprovedBy: sale.PaymentApprovedBy,
		IsPaid:            sale.IsPaid,
		Status:            string(domain.SaleStatusActive),
	}
	if sale.CreditDueDate != nil {
		due := sale.CreditDueDate.In(s.loc).Format(wireTimeLayout)
		rec.CreditSaleDate = &due
	}
	if sale.IsPaid {
		rec.Status = string(domain.SaleStatusCompleted)
	}
	return rec
}

// CreateSale validates against current stock and decrements it in the same
// critical section. A rejected sale leaves stock untouched.
func (s *Store) CreateSale(_ context.Context, req domain.SaleRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[req.ProductID]
	if !ok {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, req.ProductID)
	}
	now := s.now().In(s.loc)
	if err := credit.CheckNewSale(req, p.Stock, credit.Today(now)); err != nil {
		return err
	}

	sale := domain.Sale{
		ID:          xid.New("sale"),
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    req.Quantity,
		UnitPrice:   p.UnitPrice,
		Total:       p.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))),
		SoldBy:      strings.TrimSpace(req.SoldBy),
		ApprovedBy:  strings.TrimSpace(req.ApprovedBy),
		SalesType:   req.SalesType,
		DateSold:    now,
	}
	if sale.ApprovedBy == "" {
		sale.ApprovedBy = sale.SoldBy
	}
	if sale.IsCredit() {
		sale.CustomerName = strings.TrimSpace(req.CustomerName)
		due := *req.CreditDueDate
		sale.CreditDueDate = &due
	} else {
		sale.CustomerName = strings.TrimSpace(req.CustomerName)
		if sale.CustomerName == "" {
			sale.CustomerName = domain.WalkInCustomer
		}
		sale.IsPaid = true
	}

	p.Stock -= req.Quantity
	s.products[p.ID] = p
	s.sales = append(s.sales, sale)
	return nil
}

func (s *Store) MarkSalePaid(_ context.Context, saleID string, approvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sale := range s.sales {
		if sale.ID != saleID {
			continue
		}
		updated, err := credit.MarkPaid(sale, approvedBy)
		if err != nil {
			return err
		}
		s.sales[i] = updated
		return nil
	}
	return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
}

func (s *Store) ListUsers(_ context.Context) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]userRecord, 0, len(s.users))
	for _, acc := range s.users {
		u := acc.user
		rec := userRecord{
			ID:       u.ID,
			FullName: u.Name,
			Email:    u.Email,
			Role:     string(u.Role),
			Status:   string(u.Status),
		}
		if u.LastLoginAt != nil {
			at := u.LastLoginAt.UTC().Format(time.RFC3339)
			rec.LastLoginAt = &at
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b userRecord) int {
		return strings.Compare(a.Email, b.Email)
	})
	return json.Marshal(records)
}

func (s *Store) UpdateUserRole(_ context.Context, id string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	parsed, valid := domain.ParseRole(string(role))
	if !valid {
		return fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, role)
	}
	acc.user.Role = parsed
	s.users[id] = acc
	return nil
}

func (s *Store) UpdateUserStatus(_ context.Context, id string, status domain.AccountStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	parsed, valid := domain.ParseAccountStatus(string(status))
	if !valid {
		return fmt.Errorf("%w: unknown status %q", store.ErrInvalidInput, status)
	}
	acc.user.Status = parsed
	s.users[id] = acc
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CheckAccountActive(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.users[userID]
	if !ok {
		return false, store.ErrNotFound
	}
	return acc.user.Status == domain.AccountActive, nil
}

func (s *Store) Login(_ context.Context, email string, password string) (domain.LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.accountIDByEmail(email)
	if !ok {
		return domain.LoginResult{}, fmt.Errorf("%w: invalid credentials", store.ErrInvalidInput)
	}
	acc := s.users[id]
	if !verifyPassword(acc.password, password) {
		return domain.LoginResult{}, fmt.Errorf("%w: invalid credentials", store.ErrInvalidInput)
	}
	switch acc.user.Status {
	case domain.AccountActive:
	case domain.AccountPending:
		return domain.LoginResult{}, fmt.Errorf("%w: account is awaiting approval", store.ErrInvalidInput)
	default:
		return domain.LoginResult{}, fmt.Errorf("%w: account is inactive", store.ErrInvalidInput)
	}

	now := s.now()
	token, err := s.sign(acc.user, now)
	if err != nil {
		return domain.LoginResult{}, err
	}
	at := now.UTC()
	acc.user.LastLoginAt = &at
	s.users[id] = acc

	return domain.LoginResult{
		Identity: domain.Identity{
			ID:    acc.user.ID,
			Name:  acc.user.Name,
			Email: acc.user.Email,
			Role:  acc.user.Role,
		},
		Token: token,
	}, nil
}

func (s *Store) sign(user domain.User, now time.Time) (string, error) {
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now.UTC()),
			ExpiresAt: jwtlib.NewNumericDate(now.UTC().Add(s.tokenTTL)),
			Issuer:    "stockmaster",
		},
		Role: string(user.Role),
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Register creates a Pending account with the User role. An administrator
// activates it before it can log in.
func (s *Store) Register(_ context.Context, req domain.RegisterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(req.FullName)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || len(req.Password) < 6 {
		return fmt.Errorf("%w: name, email and a password of at least 6 characters are required", store.ErrInvalidInput)
	}
	if req.Password != req.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", store.ErrInvalidInput)
	}
	if _, exists := s.accountIDByEmail(email); exists {
		return fmt.Errorf("%w: email already registered", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{
		ID:     xid.New("usr"),
		Name:   name,
		Email:  email,
		Role:   domain.RoleUser,
		Status: domain.AccountPending,
	}
	s.users[u.ID] = account{user: u, password: string(hash)}
	return nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	name := strings.TrimSpace(update.FullName)
	email := strings.ToLower(strings.TrimSpace(update.Email))
	if name == "" || email == "" {
		return fmt.Errorf("%w: name and email are required", store.ErrInvalidInput)
	}
	if other, exists := s.accountIDByEmail(email); exists && other != id {
		return fmt.Errorf("%w: email already registered", store.ErrInvalidInput)
	}
	acc.user.Name = name
	acc.user.Email = email
	s.users[id] = acc
	return nil
}

func (s *Store) ChangePassword(_ context.Context, id string, change domain.PasswordChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if !verifyPassword(acc.password, change.Current) {
		return fmt.Errorf("%w: current password is incorrect", store.ErrInvalidInput)
	}
	if len(change.New) < 6 || change.New != change.Confirm {
		return fmt.Errorf("%w: new password must be at least 6 characters and match its confirmation", store.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(change.New), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	acc.password = string(hash)
	s.users[id] = acc
	return nil
}

// accountIDByEmail must be called with s.mu held.
func (s *Store) accountIDByEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", false
	}
	for id, acc := range s.users {
		if strings.EqualFold(acc.user.Email, email) {
			return id, true
		}
	}
	return "", false
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}
