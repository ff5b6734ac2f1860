// Package normalize turns Inventory & Sales Service payloads into canonical
// domain values. Individual bad fields degrade to defaults so a partially
// malformed feed stays usable; a payload that is not a list of records at
// all is reported as ErrFeedUnavailable.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockmaster/console/internal/credit"
	"stockmaster/console/internal/domain"
)

var ErrFeedUnavailable = errors.New("feed unavailable")

type record map[string]json.RawMessage

type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer that reads zone-less timestamps in loc.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

func (n *Normalizer) Location() *time.Location {
	return n.loc
}

func (n *Normalizer) Products(payload []byte) ([]domain.Product, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, n.product(rec))
	}
	return products, nil
}

func (n *Normalizer) product(rec record) domain.Product {
	p := domain.Product{
		ID:       rec.str(ProductKeys, "id"),
		Name:     rec.str(ProductKeys, "name"),
		Category: strings.TrimSpace(rec.str(ProductKeys, "category")),
	}
	if p.Category == "" {
		p.Category = domain.DefaultCategory
	}
	if price, ok := rec.decimal(ProductKeys, "price"); ok && !price.IsNegative() {
		p.UnitPrice = price
	}
	if stock, ok := rec.integer(ProductKeys, "stock"); ok && stock > 0 {
		p.Stock = stock
	}
	p.MinStock = domain.DefaultMinStock
	if minStock, ok := rec.integer(ProductKeys, "minStock"); ok && minStock >= 0 {
		p.MinStock = minStock
	}
	p.Status = p.StockStatus()
	return p
}

// Sales normalizes a sales feed and derives days remaining and status as of today.
func (n *Normalizer) Sales(payload []byte, today time.Time) ([]domain.Sale, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}
	sales := make([]domain.Sale, 0, len(records))
	for _, rec := range records {
		sales = append(sales, credit.Derive(n.sale(rec), today))
	}
	return sales, nil
}

func (n *Normalizer) sale(rec record) domain.Sale {
	s := domain.Sale{
		ID:          rec.str(SaleKeys, "id"),
		ProductID:   rec.str(SaleKeys, "productId"),
		ProductName: rec.str(SaleKeys, "productName"),
		SoldBy:      rec.str(SaleKeys, "soldBy"),
		ApprovedBy:  rec.str(SaleKeys, "approvedBy"),
	}
	if qty, ok := rec.integer(SaleKeys, "quantity"); ok && qty > 0 {
		s.Quantity = qty
	}

	unit, hasUnit := rec.decimal(SaleKeys, "unitPrice")
	total, hasTotal := rec.decimal(SaleKeys, "total")
	switch {
	case hasTotal:
		s.Total = total
		if hasUnit {
			s.UnitPrice = unit
		} else if s.Quantity > 0 {
			s.UnitPrice = total.Div(decimal.NewFromInt(int64(s.Quantity)))
		}
	case hasUnit:
		s.UnitPrice = unit
		s.Total = unit.Mul(decimal.NewFromInt(int64(s.Quantity)))
	}

	if at, ok := rec.timestamp(SaleKeys, "dateSold", n.loc); ok {
		s.DateSold = at
	}
	if due, ok := rec.timestamp(SaleKeys, "creditDueDate", n.loc); ok {
		s.CreditDueDate = &due
	}

	salesType, ok := domain.ParseSalesType(rec.str(SaleKeys, "salesType"))
	if !ok {
		salesType = domain.SalesTypeCash
		if s.CreditDueDate != nil {
			salesType = domain.SalesTypeCredit
		}
	}
	s.SalesType = salesType

	s.CustomerName = strings.TrimSpace(rec.str(SaleKeys, "customerName"))
	if s.CustomerName == "" {
		s.CustomerName = domain.MissingValue
		if !s.IsCredit() {
			s.CustomerName = domain.WalkInCustomer
		}
	}

	if !s.IsCredit() {
		s.CreditDueDate = nil
		s.IsPaid = true
		return s
	}

	paid, _ := rec.boolean(SaleKeys, "isPaid")
	if strings.EqualFold(strings.TrimSpace(rec.str(SaleKeys, "status")), string(domain.SaleStatusCompleted)) {
		paid = true
	}
	s.IsPaid = paid
	if paid {
		approver := strings.TrimSpace(rec.str(SaleKeys, "paymentApprovedBy"))
		if approver == "" {
			approver = strings.TrimSpace(s.ApprovedBy)
		}
		if approver == "" {
			approver = domain.MissingValue
		}
		s.PaymentApprovedBy = &approver
	}
	return s
}

func (n *Normalizer) Users(payload []byte) ([]domain.User, error) {
	records, err := decodeRecords(payload)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(records))
	for _, rec := range records {
		users = append(users, n.user(rec))
	}
	return users, nil
}

func (n *Normalizer) user(rec record) domain.User {
	u := domain.User{
		ID:    rec.str(UserKeys, "id"),
		Name:  rec.str(UserKeys, "name"),
		Email: rec.str(UserKeys, "email"),
	}
	u.Role, _ = domain.ParseRole(rec.str(UserKeys, "role"))

	status, ok := domain.ParseAccountStatus(rec.str(UserKeys, "status"))
	if !ok {
		status = domain.AccountPending
		if active, present := rec.boolean(UserKeys, "isActive"); present {
			status = domain.AccountInactive
			if active {
				status = domain.AccountActive
			}
		}
	}
	u.Status = status

	if at, ok := rec.timestamp(UserKeys, "lastLoginAt", n.loc); ok {
		u.LastLoginAt = &at
	}
	return u
}

// LoginResult reads a login response object.
func (n *Normalizer) LoginResult(payload []byte) (domain.LoginResult, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil || rec == nil {
		return domain.LoginResult{}, fmt.Errorf("%w: login response is not an object", ErrFeedUnavailable)
	}
	role, _ := domain.ParseRole(rec.str(LoginKeys, "role"))
	result := domain.LoginResult{
		Identity: domain.Identity{
			ID:    rec.str(LoginKeys, "id"),
			Name:  rec.str(LoginKeys, "name"),
			Email: rec.str(LoginKeys, "email"),
			Role:  role,
		},
		Token: rec.str(LoginKeys, "token"),
	}
	if result.Identity.ID == "" {
		return domain.LoginResult{}, fmt.Errorf("%w: login response has no account id", ErrFeedUnavailable)
	}
	return result, nil
}

// decodeRecords accepts a JSON array of objects, or an object wrapping one
// under "data", "items" or "$values".
func decodeRecords(payload []byte) ([]record, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrFeedUnavailable)
	}

	switch trimmed[0] {
	case '[':
		var rows []json.RawMessage
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
		}
		records := make([]record, 0, len(rows))
		for _, row := range rows {
			var rec record
			if err := json.Unmarshal(row, &rec); err != nil || rec == nil {
				continue
			}
			records = append(records, rec)
		}
		return records, nil
	case '{':
		var envelope record
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
		}
		for _, key := range []string{"data", "Data", "items", "Items", "$values"} {
			if inner, ok := envelope[key]; ok {
				return decodeRecords(inner)
			}
		}
		return nil, fmt.Errorf("%w: object payload without a record list", ErrFeedUnavailable)
	default:
		return nil, fmt.Errorf("%w: payload is not a record list", ErrFeedUnavailable)
	}
}

func (r record) lookup(table Table, field string) (json.RawMessage, bool) {
	for _, key := range table[field] {
		raw, ok := r[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		return raw, true
	}
	return nil, false
}

// str renders strings, numbers and booleans as text; anything else is "".
func (r record) str(table Table, field string) string {
	raw, ok := r.lookup(table, field)
	if !ok {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[':
		return ""
	default:
		return string(raw)
	}
}

func (r record) decimal(table Table, field string) (decimal.Decimal, bool) {
	text := strings.TrimSpace(r.str(table, field))
	if text == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (r record) integer(table Table, field string) (int, bool) {
	d, ok := r.decimal(table, field)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func (r record) boolean(table Table, field string) (bool, bool) {
	text := strings.TrimSpace(r.str(table, field))
	if text == "" {
		return false, false
	}
	b, err := strconv.ParseBool(text)
	if err != nil {
		return false, false
	}
	return b, true
}

func (r record) timestamp(table Table, field string, loc *time.Location) (time.Time, bool) {
	return ParseTime(r.str(table, field), loc)
}

var zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}

var localLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime reads the timestamp shapes the service emits. Values carrying a
// zone are converted into loc; zone-less values are read in loc.
func ParseTime(text string, loc *time.Location) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
