package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"budget/internal/amqp"
	"budget/internal/cache"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/storage"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrReadOnly is returned for writes attempted from a demo session.
	ErrReadOnly = errors.New("demo mode is read-only")
	// ErrEventsDisabled means no broker is configured.
	ErrEventsDisabled = errors.New("event publishing is disabled")
)

// Repository is the storage the budget service works on.
type Repository interface {
	ListIncome(ctx context.Context, userID int64) ([]core.Income, error)
	UpsertIncome(ctx context.Context, inc core.Income) error
	ReplaceIncome(ctx context.Context, userID int64, incomes []core.Income) error

	ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
	GetExpense(ctx context.Context, id, userID int64) (core.Expense, error)
	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id, userID int64) error

	ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	GetCategory(ctx context.Context, id, userID int64) (core.Category, error)
	AddCategory(ctx context.Context, c core.Category) (int64, error)
	UpdateCategory(ctx context.Context, c core.Category) (int64, error)
	DeleteCategory(ctx context.Context, id, userID int64) error
	CategoryUsage(ctx context.Context, userID int64) (map[string]int, error)

	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
	GetAccount(ctx context.Context, id, userID int64) (core.Account, error)
	AddAccount(ctx context.Context, a core.Account) (int64, error)
	UpdateAccount(ctx context.Context, a core.Account) (int64, error)
	DeleteAccount(ctx context.Context, id, userID int64) error
	AccountUsage(ctx context.Context, userID int64) (map[string]int, error)
}

var _ Repository = (*storage.SQLiteRepository)(nil)

// EventPublisher receives an event after every successful write.
type EventPublisher interface {
	PublishBudgetEvent(ctx context.Context, evt *amqp.BudgetEvent) error
}

var _ EventPublisher = (*amqp.Client)(nil)

// Viewer is whoever a request acts for: a logged-in user or a demo session.
type Viewer struct {
	UserID   int64
	Demo     bool
	Advanced bool
}

func UserViewer(userID int64) Viewer { return Viewer{UserID: userID} }

func DemoViewer(advanced bool) Viewer {
	return Viewer{UserID: core.DemoUserID, Demo: true, Advanced: advanced}
}

func (v Viewer) cacheKey() string {
	return strconv.FormatInt(v.UserID, 10) + ":"
}

// Snapshot is the income and expense set every report is computed from.
type Snapshot struct {
	Incomes  []core.Income
	Expenses []core.Expense
}

type Config struct {
	CacheSize int
	CacheTTL  time.Duration
}

// BudgetService orchestrates storage, the per-user snapshot cache and event
// publishing.
type BudgetService struct {
	repo      Repository
	publisher EventPublisher
	snapshots *cache.LRUCache[Snapshot]
	logger    *applog.Logger
	events    *applog.StructuredLogger
	observe   func(outcome string)
}

// NewBudgetService wires the service. publisher may be nil to disable events.
func NewBudgetService(repo Repository, publisher EventPublisher, logger *applog.Logger, cfg Config) *BudgetService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentBudget)
	return &BudgetService{
		repo:      repo,
		publisher: publisher,
		snapshots: cache.NewLRUCache[Snapshot](cfg.CacheSize, cfg.CacheTTL),
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
	}
}

// Cache exposes the snapshot cache so it can be registered for cleanup.
func (s *BudgetService) Cache() *cache.LRUCache[Snapshot] {
	return s.snapshots
}

// ObservePublish registers a callback receiving "published", "failed" or
// "skipped" for every event.
func (s *BudgetService) ObservePublish(fn func(outcome string)) {
	s.observe = fn
}

// Snapshot loads incomes and expenses in parallel, using the cache for
// users. Demo viewers get the built-in demo data.
func (s *BudgetService) Snapshot(ctx context.Context, v Viewer) (Snapshot, error) {
	if v.Demo {
		return Snapshot{Incomes: core.DemoIncome(v.Advanced), Expenses: core.DemoExpenses(v.Advanced)}, nil
	}
	key := v.cacheKey() + "snapshot"
	if snap, ok := s.snapshots.Get(key); ok {
		return snap, nil
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		incomes, err := s.repo.ListIncome(gctx, v.UserID)
		snap.Incomes = incomes
		return err
	})
	g.Go(func() error {
		expenses, err := s.repo.ListExpenses(gctx, v.UserID)
		snap.Expenses = expenses
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load budget: %w", err)
	}

	s.snapshots.Set(key, snap)
	return snap, nil
}

func (s *BudgetService) Summary(ctx context.Context, v Viewer) (core.Summary, error) {
	snap, err := s.Snapshot(ctx, v)
	if err != nil {
		return core.Summary{}, err
	}
	return core.BuildSummary(snap.Incomes, snap.Expenses), nil
}

func (s *BudgetService) ChartData(ctx context.Context, v Viewer) (core.ChartData, error) {
	snap, err := s.Snapshot(ctx, v)
	if err != nil {
		return core.ChartData{}, err
	}
	return core.BuildChartData(snap.Incomes, snap.Expenses), nil
}

func (s *BudgetService) YearlyOverview(ctx context.Context, v Viewer) (core.YearlyOverview, error) {
	snap, err := s.Snapshot(ctx, v)
	if err != nil {
		return core.YearlyOverview{}, err
	}
	return core.BuildYearlyOverview(snap.Incomes, snap.Expenses), nil
}

func (s *BudgetService) Incomes(ctx context.Context, v Viewer) ([]core.Income, error) {
	snap, err := s.Snapshot(ctx, v)
	return snap.Incomes, err
}

func (s *BudgetService) Expenses(ctx context.Context, v Viewer) ([]core.Expense, error) {
	snap, err := s.Snapshot(ctx, v)
	return snap.Expenses, err
}

func (s *BudgetService) Expense(ctx context.Context, v Viewer, id int64) (core.Expense, error) {
	if v.Demo {
		for _, e := range core.DemoExpenses(v.Advanced) {
			if e.ID == id {
				return e, nil
			}
		}
		return core.Expense{}, storage.ErrNotFound
	}
	return s.repo.GetExpense(ctx, id, v.UserID)
}

func (s *BudgetService) Categories(ctx context.Context, v Viewer) ([]core.Category, error) {
	if v.Demo {
		return core.DemoCategories(), nil
	}
	return s.repo.ListCategories(ctx, v.UserID)
}

func (s *BudgetService) Accounts(ctx context.Context, v Viewer) ([]core.Account, error) {
	if v.Demo {
		return core.DemoAccounts(v.Advanced), nil
	}
	return s.repo.ListAccounts(ctx, v.UserID)
}

// CategoryStat is a category with the number of expenses using it and their
// combined monthly amount.
type CategoryStat struct {
	core.Category
	Usage   int
	Monthly core.Money
}

// AccountStat is the account counterpart of CategoryStat.
type AccountStat struct {
	core.Account
	Usage   int
	Monthly core.Money
}

// CategoryStats loads categories, expenses and usage concurrently. Usage
// comes from storage so it matches the delete guard, which also counts
// expenses linked by id.
func (s *BudgetService) CategoryStats(ctx context.Context, v Viewer) ([]CategoryStat, error) {
	var (
		cats  []core.Category
		snap  Snapshot
		usage map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cats, err = s.Categories(gctx, v)
		return err
	})
	g.Go(func() (err error) {
		snap, err = s.Snapshot(gctx, v)
		return err
	})
	if !v.Demo {
		g.Go(func() (err error) {
			usage, err = s.repo.CategoryUsage(gctx, v.UserID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if v.Demo {
		usage = countBy(snap.Expenses, func(e core.Expense) string { return e.Category })
	}

	totals := core.AggregateByCategory(snap.Expenses)
	out := make([]CategoryStat, len(cats))
	for i, c := range cats {
		out[i] = CategoryStat{Category: c, Usage: usage[c.Name], Monthly: totals[c.Name]}
	}
	return out, nil
}

func (s *BudgetService) AccountStats(ctx context.Context, v Viewer) ([]AccountStat, error) {
	var (
		accounts []core.Account
		snap     Snapshot
		usage    map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.Accounts(gctx, v)
		return err
	})
	g.Go(func() (err error) {
		snap, err = s.Snapshot(gctx, v)
		return err
	})
	if !v.Demo {
		g.Go(func() (err error) {
			usage, err = s.repo.AccountUsage(gctx, v.UserID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if v.Demo {
		usage = countBy(snap.Expenses, func(e core.Expense) string { return e.Account })
	}

	totals := core.AggregateByAccount(snap.Expenses)
	out := make([]AccountStat, len(accounts))
	for i, a := range accounts {
		out[i] = AccountStat{Account: a, Usage: usage[a.Name], Monthly: totals[a.Name]}
	}
	return out, nil
}

// countBy counts demo expenses per key.
func countBy(expenses []core.Expense, key func(core.Expense) string) map[string]int {
	out := make(map[string]int)
	for _, e := range expenses {
		if k := key(e); k != "" {
			out[k]++
		}
	}
	return out
}

// ReplaceIncome validates every row and swaps the user's income set in one
// transaction.
func (s *BudgetService) ReplaceIncome(ctx context.Context, v Viewer, incomes []core.Income) error {
	if v.Demo {
		return ErrReadOnly
	}
	for i := range incomes {
		incomes[i].UserID = v.UserID
		incomes[i].Person = strings.TrimSpace(incomes[i].Person)
		if err := incomes[i].Validate(); err != nil {
			return fmt.Errorf("income %q: %w", incomes[i].Person, err)
		}
	}
	if err := s.repo.ReplaceIncome(ctx, v.UserID, incomes); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventIncomeChanged, applog.OpReplace, "income", 0)
	return nil
}

func (s *BudgetService) UpsertIncome(ctx context.Context, v Viewer, inc core.Income) error {
	if v.Demo {
		return ErrReadOnly
	}
	inc.UserID = v.UserID
	inc.Person = strings.TrimSpace(inc.Person)
	if err := inc.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpsertIncome(ctx, inc); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventIncomeChanged, applog.OpUpdate, "income", 0)
	return nil
}

// AddExpense normalizes and validates e before storing it.
func (s *BudgetService) AddExpense(ctx context.Context, v Viewer, e core.Expense) (int64, error) {
	if v.Demo {
		return 0, ErrReadOnly
	}
	e.UserID = v.UserID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return 0, err
	}
	id, err := s.repo.AddExpense(ctx, e)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, v.UserID, amqp.EventExpenseCreated, applog.OpCreate, "expense", id)
	return id, nil
}

// UpdateExpense replaces the stored expense. Switching to monthly clears
// any months.
func (s *BudgetService) UpdateExpense(ctx context.Context, v Viewer, e core.Expense) error {
	if v.Demo {
		return ErrReadOnly
	}
	e.UserID = v.UserID
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateExpense(ctx, e); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventExpenseUpdated, applog.OpUpdate, "expense", e.ID)
	return nil
}

func (s *BudgetService) DeleteExpense(ctx context.Context, v Viewer, id int64) error {
	if v.Demo {
		return ErrReadOnly
	}
	if err := s.repo.DeleteExpense(ctx, id, v.UserID); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventExpenseDeleted, applog.OpDelete, "expense", id)
	return nil
}

func (s *BudgetService) Category(ctx context.Context, v Viewer, id int64) (core.Category, error) {
	if v.Demo {
		for _, c := range core.DemoCategories() {
			if c.ID == id {
				return c, nil
			}
		}
		return core.Category{}, storage.ErrNotFound
	}
	return s.repo.GetCategory(ctx, id, v.UserID)
}

func (s *BudgetService) AddCategory(ctx context.Context, v Viewer, c core.Category) (int64, error) {
	if v.Demo {
		return 0, ErrReadOnly
	}
	c.UserID = v.UserID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return 0, err
	}
	id, err := s.repo.AddCategory(ctx, c)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, v.UserID, amqp.EventCategoryChanged, applog.OpCreate, "category", id)
	return id, nil
}

// UpdateCategory renames a category and the expenses filed under it. It
// returns the number of renamed expenses.
func (s *BudgetService) UpdateCategory(ctx context.Context, v Viewer, c core.Category) (int64, error) {
	if v.Demo {
		return 0, ErrReadOnly
	}
	c.UserID = v.UserID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.UpdateCategory(ctx, c)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, v.UserID, amqp.EventCategoryChanged, applog.OpUpdate, "category", c.ID)
	return n, nil
}

// DeleteCategory refuses with storage.ErrInUse while expenses use it.
func (s *BudgetService) DeleteCategory(ctx context.Context, v Viewer, id int64) error {
	if v.Demo {
		return ErrReadOnly
	}
	if err := s.repo.DeleteCategory(ctx, id, v.UserID); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventCategoryChanged, applog.OpDelete, "category", id)
	return nil
}

func (s *BudgetService) Account(ctx context.Context, v Viewer, id int64) (core.Account, error) {
	if v.Demo {
		for _, a := range core.DemoAccounts(v.Advanced) {
			if a.ID == id {
				return a, nil
			}
		}
		return core.Account{}, storage.ErrNotFound
	}
	return s.repo.GetAccount(ctx, id, v.UserID)
}

func (s *BudgetService) AddAccount(ctx context.Context, v Viewer, a core.Account) (int64, error) {
	if v.Demo {
		return 0, ErrReadOnly
	}
	a.UserID = v.UserID
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	id, err := s.repo.AddAccount(ctx, a)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, v.UserID, amqp.EventAccountChanged, applog.OpCreate, "account", id)
	return id, nil
}

func (s *BudgetService) UpdateAccount(ctx context.Context, v Viewer, a core.Account) (int64, error) {
	if v.Demo {
		return 0, ErrReadOnly
	}
	a.UserID = v.UserID
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return 0, err
	}
	n, err := s.repo.UpdateAccount(ctx, a)
	if err != nil {
		return 0, err
	}
	s.changed(ctx, v.UserID, amqp.EventAccountChanged, applog.OpUpdate, "account", a.ID)
	return n, nil
}

func (s *BudgetService) DeleteAccount(ctx context.Context, v Viewer, id int64) error {
	if v.Demo {
		return ErrReadOnly
	}
	if err := s.repo.DeleteAccount(ctx, id, v.UserID); err != nil {
		return err
	}
	s.changed(ctx, v.UserID, amqp.EventAccountChanged, applog.OpDelete, "account", id)
	return nil
}

// RequestExport asks the export worker to rebuild the user's overview.
// Without a broker it returns ErrEventsDisabled; the worker then exports on
// its own schedule.
func (s *BudgetService) RequestExport(ctx context.Context, v Viewer) error {
	if v.Demo {
		return ErrReadOnly
	}
	if err := s.publish(ctx, amqp.NewBudgetEvent(amqp.EventExportRequested, v.UserID, 0)); err != nil {
		return fmt.Errorf("request export: %w", err)
	}
	return nil
}

// Invalidate drops cached data for userID.
func (s *BudgetService) Invalidate(userID int64) {
	s.snapshots.DeletePrefix(UserViewer(userID).cacheKey())
}

// changed runs after every successful write: it invalidates the cache, logs
// the change and publishes an event. Publishing failures are only logged.
func (s *BudgetService) changed(ctx context.Context, userID int64, t amqp.EventType, op, entity string, id int64) {
	s.Invalidate(userID)
	s.events.LogBudgetChange(ctx, userID, op, entity, id)
	_ = s.publish(ctx, amqp.NewBudgetEvent(t, userID, id))
}

func (s *BudgetService) publish(ctx context.Context, evt *amqp.BudgetEvent) error {
	outcome := "published"
	var err error
	switch {
	case s.publisher == nil:
		outcome = "skipped"
		err = ErrEventsDisabled
	default:
		if err = s.publisher.PublishBudgetEvent(ctx, evt); err != nil {
			outcome = "failed"
			fields := applog.NewFields().WithUser(evt.UserID)
			fields[applog.FieldEventID] = evt.ID
			s.events.LogError(ctx, "Failed to publish budget event", err, applog.ComponentBudget, "publish", fields)
		}
	}
	if s.observe != nil {
		s.observe(outcome)
	}
	return err
}
