package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"stockmaster/console/internal/access"
	"stockmaster/console/internal/dashboard"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/store"
)

const recentSalesLimit = 5

type DashboardView struct {
	Identity    domain.Identity   `json:"identity"`
	Summary     dashboard.Summary `json:"summary"`
	NearDue     []domain.Sale     `json:"near_due"`
	LowStock    []domain.Product  `json:"low_stock"`
	RecentSales []domain.Sale     `json:"recent_sales"`
	LoadedAt    time.Time         `json:"loaded_at"`
}

type UserRow struct {
	domain.User
	Permissions access.Permissions   `json:"permissions"`
	NextStatus  domain.AccountStatus `json:"next_status"`
}

type UsersView struct {
	Rows            []UserRow                    `json:"rows"`
	AssignableRoles []domain.Role                `json:"assignable_roles"`
	RoleCounts      map[domain.Role]int          `json:"role_counts"`
	StatusCounts    map[domain.AccountStatus]int `json:"status_counts"`
}

func (c *Console) Dashboard(ctx context.Context) (DashboardView, error) {
	sess, view, err := c.current()
	if err != nil {
		return DashboardView{}, err
	}
	today := c.today()
	acked, err := c.acks.Members(ctx, sess.ID)
	if err != nil {
		return DashboardView{}, fmt.Errorf("%w: acknowledgments: %v", store.ErrUnavailable, err)
	}

	recent := dashboard.SalesOn(view.sales, today, "")
	slices.SortStableFunc(recent, func(a, b domain.Sale) int {
		return b.DateSold.Compare(a.DateSold)
	})
	if len(recent) > recentSalesLimit {
		recent = recent[:recentSalesLimit]
	}

	return DashboardView{
		Identity:    sess.Identity,
		Summary:     dashboard.Summarize(view.products, view.sales, today, acked, c.now()),
		NearDue:     dashboard.NearDue(view.sales, today, acked),
		LowStock:    dashboard.LowStock(view.products),
		RecentSales: recent,
		LoadedAt:    view.loadedAt,
	}, nil
}

// Products lists the catalog, optionally narrowed by a name search.
func (c *Console) Products(_ context.Context, term string) ([]domain.Product, error) {
	_, view, err := c.current()
	if err != nil {
		return nil, err
	}
	return dashboard.SearchProducts(view.products, term), nil
}

// SalesLog lists every sale whose sale date matches datePrefix.
func (c *Console) SalesLog(_ context.Context, datePrefix string) ([]domain.Sale, error) {
	_, view, err := c.current()
	if err != nil {
		return nil, err
	}
	return dashboard.SalesOn(view.sales, c.today(), datePrefix), nil
}

func (c *Console) CreditSales(_ context.Context, mode dashboard.CreditView, datePrefix string) ([]domain.Sale, error) {
	_, view, err := c.current()
	if err != nil {
		return nil, err
	}
	return dashboard.CreditSales(view.sales, c.today(), mode, datePrefix), nil
}

// NearDue returns the unacknowledged near-due alerts for this session.
func (c *Console) NearDue(ctx context.Context) ([]domain.Sale, error) {
	sess, view, err := c.current()
	if err != nil {
		return nil, err
	}
	acked, err := c.acks.Members(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: acknowledgments: %v", store.ErrUnavailable, err)
	}
	return dashboard.NearDue(view.sales, c.today(), acked), nil
}

// AcknowledgeNearDue acknowledges every alert currently shown as one batch
// and returns the ids added. With nothing outstanding it does nothing.
func (c *Console) AcknowledgeNearDue(ctx context.Context) ([]string, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	pending, err := c.NearDue(ctx)
	if err != nil {
		return nil, err
	}
	ids := dashboard.IDs(pending)
	if len(ids) == 0 {
		return ids, nil
	}
	if err := c.acks.Add(ctx, sess.ID, ids...); err != nil {
		return nil, fmt.Errorf("%w: acknowledgments: %v", store.ErrUnavailable, err)
	}
	return ids, nil
}

// Users lists the accounts the operator may see, each with its permission
// flags. Only administrators load the user list.
func (c *Console) Users(_ context.Context) (UsersView, error) {
	sess, view, err := c.current()
	if err != nil {
		return UsersView{}, err
	}
	if !access.CanAdministerUsers(sess.Identity.Role) {
		return UsersView{}, fmt.Errorf("%w: user administration requires Admin", store.ErrForbidden)
	}

	visible := access.VisibleUsers(sess.Identity, view.users)
	rows := make([]UserRow, 0, len(visible))
	for _, u := range visible {
		rows = append(rows, UserRow{
			User:        u,
			Permissions: access.Evaluate(sess.Identity, u),
			NextStatus:  access.NextStatus(u.Status),
		})
	}
	return UsersView{
		Rows:            rows,
		AssignableRoles: access.AssignableRoles(sess.Identity),
		RoleCounts:      dashboard.RoleBreakdown(visible),
		StatusCounts:    dashboard.StatusBreakdown(visible),
	}, nil
}

func (c *Console) AuditLogs(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	if !access.CanAdministerUsers(sess.Identity.Role) {
		return nil, fmt.Errorf("%w: activity log requires Admin", store.ErrForbidden)
	}
	if c.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	return c.audit.List(ctx, limit)
}

func (v snapshot) product(id string) (domain.Product, bool) {
	for _, p := range v.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (v snapshot) sale(id string) (domain.Sale, bool) {
	for _, s := range v.sales {
		if s.ID == id {
			return s, true
		}
	}
	return domain.Sale{}, false
}

func (v snapshot) user(id string) (domain.User, bool) {
	id = strings.TrimSpace(id)
	for _, u := range v.users {
		if u.ID == id {
			return u, true
		}
	}
	return domain.User{}, false
}
