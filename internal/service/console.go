package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"stockmaster/console/internal/access"
	"stockmaster/console/internal/cache"
	"stockmaster/console/internal/credit"
	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/normalize"
	"stockmaster/console/internal/schedule"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/store"
)

type Options struct {
	Inventory        store.Inventory
	Acks             cache.AckStore
	Audit            store.AuditLog
	Normalizer       *normalize.Normalizer
	Now              func() time.Time
	RefreshInterval  time.Duration
	LivenessInterval time.Duration
}

// Console is the operator's view of the Inventory & Sales Service for the
// lifetime of one login. It owns the session, the cached collections and
// the background refresh and liveness runners.
type Console struct {
	inv        store.Inventory
	acks       cache.AckStore
	audit      store.AuditLog
	normalizer *normalize.Normalizer
	now        func() time.Time
	sessions   *session.Manager

	refreshEvery  time.Duration
	livenessEvery time.Duration

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu          sync.RWMutex
	view        snapshot
	invalidated session.EndReason

	runMu     sync.Mutex
	refresher *schedule.Runner
	liveness  *schedule.Runner
}

type snapshot struct {
	generation uint64
	products   []domain.Product
	sales      []domain.Sale
	users      []domain.User
	loadedAt   time.Time
}

func New(opts Options) *Console {
	if opts.Acks == nil {
		opts.Acks = cache.NewMemoryAckStore()
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(time.Local)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 15 * time.Second
	}
	if opts.LivenessInterval <= 0 {
		opts.LivenessInterval = 8 * time.Second
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Console{
		inv:           opts.Inventory,
		acks:          opts.Acks,
		audit:         opts.Audit,
		normalizer:    opts.Normalizer,
		now:           opts.Now,
		sessions:      session.NewManager(),
		refreshEvery:  opts.RefreshInterval,
		livenessEvery: opts.LivenessInterval,
		baseCtx:       baseCtx,
		cancelBase:    cancel,
	}
}

// Location is the zone calendar dates are read in.
func (c *Console) Location() *time.Location {
	return c.normalizer.Location()
}

func (c *Console) today() time.Time {
	return credit.Today(c.now().In(c.normalizer.Location()))
}

// Login authenticates against the service and starts a fresh session. Any
// previous session is torn down first.
func (c *Console) Login(ctx context.Context, req domain.LoginRequest) (session.Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		return session.Session{}, err
	}

	result, err := c.inv.Login(ctx, req.Email, req.Password)
	if err != nil {
		return session.Session{}, err
	}

	sess, previous := c.sessions.Begin(result, c.now())
	if previous != nil {
		c.teardown(*previous, session.EndLogout)
	}
	if auth, ok := c.inv.(store.Authenticator); ok {
		auth.SetToken(sess.Token)
	}

	c.mu.Lock()
	c.view = snapshot{generation: sess.Generation}
	c.invalidated = ""
	c.mu.Unlock()

	if err := c.refresh(ctx, sess.Generation); err != nil {
		log.Printf("[service] WARN: initial refresh for %s failed: %v", sess.Identity.Email, err)
	}
	c.startRunners(sess.Generation)

	c.logAudit(ctx, sess, "session.login", "user", sess.Identity.ID, string(sess.Identity.Role))
	log.Printf("[service] session started for %s (%s)", sess.Identity.Email, sess.Identity.Role)
	return sess, nil
}

// Register submits a self-registration. The new account starts Pending and
// no session is opened.
func (c *Console) Register(ctx context.Context, req domain.RegisterRequest) error {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.inv.Register(ctx, req)
}

func (c *Console) Logout(ctx context.Context) error {
	sess, err := c.sessions.Require()
	if err != nil {
		return err
	}
	c.logAudit(ctx, sess, "session.logout", "user", sess.Identity.ID, "")
	c.endSession(sess.Generation, session.EndLogout)

	c.mu.Lock()
	c.invalidated = ""
	c.mu.Unlock()
	return nil
}

// Session returns the live session. After a forced teardown it reports
// ErrSessionInvalidated until the next login or logout.
func (c *Console) Session() (session.Session, error) {
	sess, ok := c.sessions.Current()
	if ok {
		if sess.Expired(c.now()) {
			c.endSession(sess.Generation, session.EndExpired)
			return session.Session{}, fmt.Errorf("%w: token expired", session.ErrSessionInvalidated)
		}
		return sess, nil
	}

	c.mu.RLock()
	reason := c.invalidated
	c.mu.RUnlock()
	if reason != "" {
		return session.Session{}, fmt.Errorf("%w: %s", session.ErrSessionInvalidated, reason)
	}
	return session.Session{}, session.ErrNoSession
}

// Close ends any session and stops background work.
func (c *Console) Close() {
	if sess, ok := c.sessions.Current(); ok {
		c.endSession(sess.Generation, session.EndShutdown)
	}
	c.runMu.Lock()
	refresher, liveness := c.refresher, c.liveness
	c.runMu.Unlock()
	if refresher != nil {
		refresher.Stop()
	}
	if liveness != nil {
		liveness.Stop()
	}
	c.cancelBase()
}

// endSession tears down the session identified by generation: runners are
// halted, the token is dropped, the cached view and the acknowledgment set
// are cleared. It is a no-op when that session is already gone.
func (c *Console) endSession(generation uint64, reason session.EndReason) {
	ended, ok := c.sessions.End(generation)
	if !ok {
		return
	}
	c.teardown(ended, reason)
}

// teardown releases what an ended or replaced session held.
func (c *Console) teardown(ended session.Session, reason session.EndReason) {
	c.haltRunners()
	if auth, ok := c.inv.(store.Authenticator); ok {
		auth.SetToken("")
	}

	c.mu.Lock()
	c.view = snapshot{}
	if reason == session.EndDeactivated || reason == session.EndExpired {
		c.invalidated = reason
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.acks.Clear(ctx, ended.ID); err != nil {
		log.Printf("[service] WARN: failed to clear acknowledgments for session %s: %v", ended.ID, err)
	}
	log.Printf("[service] session for %s ended: %s", ended.Identity.Email, reason)
}

func (c *Console) startRunners(generation uint64) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.refresher = schedule.NewRunner("refresh", c.refreshEvery, func(ctx context.Context) error {
		return c.refresh(ctx, generation)
	})
	c.liveness = schedule.NewRunner("liveness", c.livenessEvery, func(ctx context.Context) error {
		return c.checkLiveness(ctx, generation)
	})
	c.refresher.Start(c.baseCtx)
	c.liveness.Start(c.baseCtx)
}

// haltRunners may run inside a runner's own task, so it never waits.
func (c *Console) haltRunners() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.refresher != nil {
		c.refresher.Halt()
	}
	if c.liveness != nil {
		c.liveness.Halt()
	}
}

func (c *Console) triggerRefresh() {
	c.runMu.Lock()
	refresher := c.refresher
	c.runMu.Unlock()
	if refresher != nil {
		refresher.Trigger()
	}
}

// Refresh re-fetches the collections now.
func (c *Console) Refresh(ctx context.Context) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	return c.refresh(ctx, sess.Generation)
}

// refresh fetches products and sales, plus users for administrators. Each
// collection that fails keeps its previous value. Results for a session that
// ended while the calls were in flight are dropped.
func (c *Console) refresh(ctx context.Context, generation uint64) error {
	sess, ok := c.sessions.Current()
	if !ok || sess.Generation != generation {
		return nil
	}

	var errs []error
	products, err := c.fetchProducts(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("products: %w", err))
	}
	sales, err := c.fetchSales(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sales: %w", err))
	}
	var users []domain.User
	if access.CanAdministerUsers(sess.Identity.Role) {
		users, err = c.fetchUsers(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("users: %w", err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sessions.IsCurrent(generation) {
		return nil
	}
	c.view.generation = generation
	if products != nil {
		c.view.products = products
	}
	if sales != nil {
		c.view.sales = sales
	}
	if users != nil {
		c.view.users = users
	}
	if len(errs) == 0 {
		c.view.loadedAt = c.now()
	}
	return errors.Join(errs...)
}

func (c *Console) fetchProducts(ctx context.Context) ([]domain.Product, error) {
	payload, err := c.inv.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Products(payload)
}

func (c *Console) fetchSales(ctx context.Context) ([]domain.Sale, error) {
	payload, err := c.inv.ListSales(ctx)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Sales(payload, c.today())
}

func (c *Console) fetchUsers(ctx context.Context) ([]domain.User, error) {
	payload, err := c.inv.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return c.normalizer.Users(payload)
}

// CheckLiveness asks the service whether the logged-in account is still
// active. An inactive or deleted account, or an expired token, tears the
// session down and yields ErrSessionInvalidated.
func (c *Console) CheckLiveness(ctx context.Context) error {
	sess, err := c.Session()
	if err != nil {
		return err
	}
	return c.checkLiveness(ctx, sess.Generation)
}

func (c *Console) checkLiveness(ctx context.Context, generation uint64) error {
	sess, ok := c.sessions.Current()
	if !ok || sess.Generation != generation {
		return nil
	}
	if sess.Expired(c.now()) {
		c.endSession(generation, session.EndExpired)
		return fmt.Errorf("%w: token expired", session.ErrSessionInvalidated)
	}

	active, err := c.inv.CheckAccountActive(ctx, sess.Identity.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	case active:
		return nil
	}

	if !c.sessions.IsCurrent(generation) {
		return nil
	}
	c.endSession(generation, session.EndDeactivated)
	return fmt.Errorf("%w: account %s is no longer active", session.ErrSessionInvalidated, sess.Identity.Email)
}

// current returns the live session and the collections loaded for it.
func (c *Console) current() (session.Session, snapshot, error) {
	sess, err := c.Session()
	if err != nil {
		return session.Session{}, snapshot{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.view.generation != sess.Generation {
		return sess, snapshot{generation: sess.Generation}, nil
	}
	return sess, c.view, nil
}

// afterWrite refreshes right away so the caller sees its own mutation. If
// that fails the background runner is nudged to retry.
func (c *Console) afterWrite(ctx context.Context, sess session.Session) {
	if err := c.refresh(ctx, sess.Generation); err != nil {
		log.Printf("[service] WARN: refresh after write failed: %v", err)
		c.triggerRefresh()
	}
}
