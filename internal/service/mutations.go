package service

import (
	"context"
	"fmt"
	"strings"

	"stockmaster/console/internal/access"
	"stockmaster/console/internal/credit"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/store"
)

// CreateSale records a cash or credit sale. Stock and credit fields are
// checked against the loaded catalog before anything is sent; the service
// re-checks stock itself.
func (c *Console) CreateSale(ctx context.Context, req domain.SaleRequest) error {
	sess, view, err := c.current()
	if err != nil {
		return err
	}
	if !credit.CanRecordSale(sess.Identity.Role) {
		return fmt.Errorf("%w: %s cannot record sales", store.ErrForbidden, sess.Identity.Role)
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if strings.TrimSpace(req.SoldBy) == "" {
		req.SoldBy = sess.Identity.Name
	}
	if strings.TrimSpace(req.ApprovedBy) == "" {
		req.ApprovedBy = sess.Identity.Name
	}
	if salesType, ok := domain.ParseSalesType(string(req.SalesType)); ok {
		req.SalesType = salesType
	}
	if req.SalesType == domain.SalesTypeCash {
		req.CreditDueDate = nil
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	product, ok := view.product(req.ProductID)
	if !ok {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, req.ProductID)
	}
	if err := credit.CheckNewSale(req, product.Stock, c.today()); err != nil {
		return err
	}

	if err := c.inv.CreateSale(ctx, req); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "sale.create", "product", product.ID,
		fmt.Sprintf("type=%s,qty=%d,customer=%s", req.SalesType, req.Quantity, req.CustomerName))
	c.afterWrite(ctx, sess)
	return nil
}

// MarkPaid settles an unpaid credit sale in the operator's name.
func (c *Console) MarkPaid(ctx context.Context, saleID string) error {
	sess, view, err := c.current()
	if err != nil {
		return err
	}
	if !credit.CanApprovePayment(sess.Identity.Role) {
		return fmt.Errorf("%w: %s cannot approve payments", store.ErrForbidden, sess.Identity.Role)
	}

	sale, ok := view.sale(strings.TrimSpace(saleID))
	if !ok {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, saleID)
	}
	approver := strings.TrimSpace(sess.Identity.Name)
	if err := credit.CheckMarkPaid(sale, approver); err != nil {
		return err
	}

	if err := c.inv.MarkSalePaid(ctx, sale.ID, approver); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "sale.mark_paid", "sale", sale.ID,
		fmt.Sprintf("customer=%s,total=%s", sale.CustomerName, sale.Total.StringFixed(2)))
	c.afterWrite(ctx, sess)
	return nil
}

func (c *Console) CreateProduct(ctx context.Context, input domain.ProductInput) error {
	sess, err := c.requireInventoryRole()
	if err != nil {
		return err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Category = strings.TrimSpace(input.Category)
	if err := validateRequest(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", store.ErrInvalidInput)
	}
	if input.MinStock == nil {
		minStock := domain.DefaultMinStock
		input.MinStock = &minStock
	}

	if err := c.inv.CreateProduct(ctx, input); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "product.create", "product", input.Name,
		fmt.Sprintf("price=%s,stock=%d,min=%d", input.Price.String(), input.Stock, *input.MinStock))
	c.afterWrite(ctx, sess)
	return nil
}

func (c *Console) UpdateProduct(ctx context.Context, id string, details domain.ProductDetails) error {
	sess, err := c.requireInventoryRole()
	if err != nil {
		return err
	}
	details.Name = strings.TrimSpace(details.Name)
	details.Category = strings.TrimSpace(details.Category)
	if err := validateRequest(details); err != nil {
		return err
	}
	if details.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", store.ErrInvalidInput)
	}

	if err := c.inv.UpdateProductDetails(ctx, id, details); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "product.update", "product", id,
		fmt.Sprintf("name=%s,price=%s,min=%d", details.Name, details.Price.String(), details.MinStock))
	c.afterWrite(ctx, sess)
	return nil
}

// Restock adds quantity to the product's loaded stock and writes the result
// as the new absolute stock level.
func (c *Console) Restock(ctx context.Context, id string, quantity int) error {
	sess, err := c.requireInventoryRole()
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: restock quantity must be positive", store.ErrInvalidInput)
	}
	_, view, err := c.current()
	if err != nil {
		return err
	}
	product, ok := view.product(id)
	if !ok {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}

	newStock := product.Stock + quantity
	if err := c.inv.AdjustStock(ctx, product.ID, newStock); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "product.restock", "product", product.ID,
		fmt.Sprintf("from=%d,to=%d", product.Stock, newStock))
	c.afterWrite(ctx, sess)
	return nil
}

func (c *Console) DeleteProduct(ctx context.Context, id string) error {
	sess, err := c.requireInventoryRole()
	if err != nil {
		return err
	}
	if err := c.inv.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "product.delete", "product", id, "")
	c.afterWrite(ctx, sess)
	return nil
}

func (c *Console) ChangeUserRole(ctx context.Context, userID string, role domain.Role) error {
	sess, target, err := c.targetUser(userID)
	if err != nil {
		return err
	}
	parsed, ok := domain.ParseRole(string(role))
	if !ok {
		return fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, role)
	}
	if err := access.CheckRoleChange(sess.Identity, target, parsed); err != nil {
		return err
	}

	if err := c.inv.UpdateUserRole(ctx, target.ID, parsed); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "user.role", "user", target.ID, fmt.Sprintf("from=%s,to=%s", target.Role, parsed))
	c.afterWrite(ctx, sess)
	return nil
}

// ToggleUserStatus moves the account to access.NextStatus of its current status.
func (c *Console) ToggleUserStatus(ctx context.Context, userID string) (domain.AccountStatus, error) {
	_, target, err := c.targetUser(userID)
	if err != nil {
		return "", err
	}
	next := access.NextStatus(target.Status)
	if err := c.SetUserStatus(ctx, userID, next); err != nil {
		return "", err
	}
	return next, nil
}

func (c *Console) SetUserStatus(ctx context.Context, userID string, status domain.AccountStatus) error {
	sess, target, err := c.targetUser(userID)
	if err != nil {
		return err
	}
	parsed, ok := domain.ParseAccountStatus(string(status))
	if !ok {
		return fmt.Errorf("%w: unknown status %q", store.ErrInvalidInput, status)
	}
	if err := access.CheckStatusChange(sess.Identity, target, parsed); err != nil {
		return err
	}

	if err := c.inv.UpdateUserStatus(ctx, target.ID, parsed); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "user.status", "user", target.ID, fmt.Sprintf("from=%s,to=%s", target.Status, parsed))
	c.afterWrite(ctx, sess)
	return nil
}

func (c *Console) DeleteUser(ctx context.Context, userID string) error {
	sess, target, err := c.targetUser(userID)
	if err != nil {
		return err
	}
	if err := access.CheckDelete(sess.Identity, target); err != nil {
		return err
	}

	if err := c.inv.DeleteUser(ctx, target.ID); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "user.delete", "user", target.ID, target.Email)
	c.afterWrite(ctx, sess)
	return nil
}

// UpdateProfile changes the operator's own name and email and applies them
// to the live session.
func (c *Console) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.Identity, error) {
	sess, err := c.Session()
	if err != nil {
		return domain.Identity{}, err
	}
	update.FullName = strings.TrimSpace(update.FullName)
	update.Email = strings.TrimSpace(update.Email)
	if err := validateRequest(update); err != nil {
		return domain.Identity{}, err
	}

	if err := c.inv.UpdateProfile(ctx, sess.Identity.ID, update); err != nil {
		return domain.Identity{}, err
	}
	c.sessions.UpdateIdentity(sess.Generation, update.FullName, update.Email)
	c.logAudit(ctx, sess, "user.profile", "user", sess.Identity.ID, update.Email)

	updated, err := c.Session()
	if err != nil {
		return domain.Identity{}, err
	}
	return updated.Identity, nil
}

func (c *Console) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	if err := validateRequest(change); err != nil {
		return err
	}
	if err := c.inv.ChangePassword(ctx, sess.Identity.ID, change); err != nil {
		return err
	}
	c.logAudit(ctx, sess, "user.password", "user", sess.Identity.ID, "")
	return nil
}

func (c *Console) requireInventoryRole() (session.Session, error) {
	sess, err := c.Session()
	if err != nil {
		return session.Session{}, err
	}
	if !access.CanManageInventory(sess.Identity.Role) {
		return session.Session{}, fmt.Errorf("%w: inventory changes require Manager", store.ErrForbidden)
	}
	return sess, nil
}

// targetUser resolves a user from the loaded list. Only administrators have
// one, so everyone else is refused here.
func (c *Console) targetUser(userID string) (session.Session, domain.User, error) {
	sess, view, err := c.current()
	if err != nil {
		return session.Session{}, domain.User{}, err
	}
	if !access.CanAdministerUsers(sess.Identity.Role) {
		return session.Session{}, domain.User{}, fmt.Errorf("%w: user administration requires Admin", store.ErrForbidden)
	}
	target, ok := view.user(userID)
	if !ok {
		return session.Session{}, domain.User{}, fmt.Errorf("%w: user %s", store.ErrNotFound, userID)
	}
	return sess, target, nil
}
