package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"dokon/backend/internal/domain"
	"dokon/backend/internal/store"
	"dokon/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var validate = validator.New()

// BatchError reports a failure partway through a multi-line restock or sale.
// Lines before Line were fully applied (stock moved and ledger line written)
// and stay applied; there is no rollback.
type BatchError struct {
	Line      int
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("line %d failed after %d committed: %v", e.Line, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Engine applies stock mutations to the repository. In conditional mode stock
// writes go through compare-and-swap with a bounded retry; in the default mode
// they are plain replacements and concurrent writers can lose updates.
type Engine struct {
	repo             store.Repository
	conditionalStock bool
	maxStockRetries  int
}

func New(repo store.Repository, conditionalStock bool) *Engine {
	return &Engine{
		repo:             repo,
		conditionalStock: conditionalStock,
		maxStockRetries:  3,
	}
}

func (e *Engine) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return e.repo.ListProducts(ctx)
}

func (e *Engine) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return e.repo.ListCategories(ctx)
}

func (e *Engine) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return e.repo.ListTransactions(ctx)
}

func (e *Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.repo.ListUsers(ctx)
}

func (e *Engine) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	category, err := e.resolveCategory(ctx, req.Category)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := e.repo.InsertProduct(ctx, domain.Product{
		Name:      strings.TrimSpace(req.Name),
		Category:  category,
		Price:     req.Price,
		Barcode:   strings.TrimSpace(req.Barcode),
		Quantity:  req.Quantity,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	return *created, nil
}

// UpdateProduct replaces the stored product. A quantity edit is treated as a
// manual stock correction and leaves an adjustment line in the ledger with
// the signed delta, so restocks and sales are not the only way stock moves.
func (e *Engine) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	if err := validate.Struct(req); err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	existing, err := e.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	category, err := e.resolveCategory(ctx, req.Category)
	if err != nil {
		return domain.Product{}, err
	}

	saved, err := e.repo.ReplaceProduct(ctx, domain.Product{
		ID:        existing.ID,
		Name:      strings.TrimSpace(req.Name),
		Category:  category,
		Price:     req.Price,
		Barcode:   strings.TrimSpace(req.Barcode),
		Quantity:  req.Quantity,
		CreatedAt: existing.CreatedAt,
	})
	if err != nil {
		return domain.Product{}, err
	}

	if saved.Quantity != existing.Quantity {
		_, err := e.repo.InsertTransaction(ctx, domain.Transaction{
			ProductID:   saved.ID,
			ProductName: saved.Name,
			Type:        domain.TxAdjustment,
			Quantity:    saved.Quantity - existing.Quantity,
			Price:       saved.Price,
			Date:        time.Now().UTC(),
		})
		if err != nil {
			log.Printf("[ledger] WARN: failed to record adjustment for product %s: %v", saved.ID, err)
		}
	}

	return *saved, nil
}

// DeleteProduct removes the product only. Its ledger lines survive and stay
// readable through the denormalized name and price snapshots.
func (e *Engine) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: product id required", store.ErrInvalidInput)
	}
	return e.repo.DeleteProduct(ctx, id)
}

// RecordRestock validates the whole batch up front, then applies lines one at
// a time: bump the quantity, append a kirim line. A mid-batch failure stops
// there and surfaces as a BatchError; earlier lines stay applied.
func (e *Engine) RecordRestock(ctx context.Context, req domain.RestockRequest) (domain.RestockResult, error) {
	if err := validate.Struct(req); err != nil {
		return domain.RestockResult{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	now := time.Now().UTC()
	result := domain.RestockResult{Transactions: make([]domain.Transaction, 0, len(req.Lines))}

	for i, line := range req.Lines {
		product, err := e.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return result, &BatchError{Line: i, Committed: i, Err: err}
		}

		updated, err := e.applyStockDelta(ctx, *product, line.Quantity)
		if err != nil {
			return result, &BatchError{Line: i, Committed: i, Err: err}
		}

		saved, err := e.repo.InsertTransaction(ctx, domain.Transaction{
			ProductID:   updated.ID,
			ProductName: updated.Name,
			Type:        domain.TxKirim,
			Quantity:    line.Quantity,
			Price:       updated.Price,
			Date:        now,
		})
		if err != nil {
			return result, &BatchError{Line: i, Committed: i, Err: err}
		}
		result.Transactions = append(result.Transactions, *saved)
	}

	return result, nil
}

// RecordSale checks the whole cart before touching anything: every product
// must exist and the summed quantity per product must fit the current stock.
// The money split is decided once for the checkout. Full payment settles at
// exactly the cart total no matter what paid amount was submitted; debt
// payment spreads the paid amount and the remainder across lines in
// proportion to each line's share of the total.
func (e *Engine) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResult, error) {
	if err := validate.Struct(req); err != nil {
		return domain.SaleResult{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	customer := strings.TrimSpace(req.CustomerName)
	if req.PaymentType == domain.PaymentDebt && customer == "" {
		return domain.SaleResult{}, fmt.Errorf("%w: customer name required for debt sale", store.ErrInvalidInput)
	}
	if customer == "" {
		customer = domain.WalkInCustomer
	}

	products := make(map[string]domain.Product, len(req.Items))
	needed := make(map[string]int, len(req.Items))
	total := 0.0
	for _, item := range req.Items {
		product, ok := products[item.ProductID]
		if !ok {
			fetched, err := e.repo.GetProduct(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return domain.SaleResult{}, fmt.Errorf("%w: unknown product %s", store.ErrInvalidInput, item.ProductID)
				}
				return domain.SaleResult{}, err
			}
			product = *fetched
			products[item.ProductID] = product
		}

		needed[item.ProductID] += item.Quantity
		if needed[item.ProductID] > product.Quantity {
			return domain.SaleResult{}, fmt.Errorf("%w: insufficient stock for %s", store.ErrInvalidInput, product.Name)
		}
		total += float64(item.Quantity) * product.Price
	}

	paid := req.PaidAmount
	if req.PaymentType == domain.PaymentFull {
		paid = total
	} else if paid > total {
		return domain.SaleResult{}, fmt.Errorf("%w: paid amount exceeds total", store.ErrInvalidInput)
	}
	debtTotal := total - paid

	now := time.Now().UTC()
	saleID := xid.New("sale")
	result := domain.SaleResult{
		SaleID:       saleID,
		TotalAmount:  total,
		PaidAmount:   paid,
		Debt:         debtTotal,
		Transactions: make([]domain.Transaction, 0, len(req.Items)),
	}

	for i, item := range req.Items {
		product := products[item.ProductID]

		updated, err := e.applyStockDelta(ctx, product, -item.Quantity)
		if err != nil {
			return result, &BatchError{Line: i, Committed: i, Err: err}
		}
		products[item.ProductID] = updated

		lineTotal := float64(item.Quantity) * product.Price
		var linePaid, lineDebt float64
		switch {
		case req.PaymentType == domain.PaymentFull:
			linePaid = lineTotal
		case total > 0:
			linePaid = paid / total * lineTotal
			lineDebt = debtTotal / total * lineTotal
		}

		saved, err := e.repo.InsertTransaction(ctx, domain.Transaction{
			ProductID:    product.ID,
			ProductName:  product.Name,
			Type:         domain.TxChiqim,
			Quantity:     item.Quantity,
			Price:        product.Price,
			Date:         now,
			SaleID:       saleID,
			TotalAmount:  lineTotal,
			PaidAmount:   linePaid,
			Debt:         lineDebt,
			CustomerName: customer,
			PaymentType:  req.PaymentType,
		})
		if err != nil {
			return result, &BatchError{Line: i, Committed: i, Err: err}
		}
		result.Transactions = append(result.Transactions, *saved)
	}

	return result, nil
}

func (e *Engine) AddCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.Category{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	created, err := e.repo.InsertCategory(ctx, domain.Category{
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

// DeleteCategory refuses to remove a category any product still references.
func (e *Engine) DeleteCategory(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: category id required", store.ErrInvalidInput)
	}

	categories, err := e.repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	var target *domain.Category
	for i := range categories {
		if categories[i].ID == id {
			target = &categories[i]
			break
		}
	}
	if target == nil {
		return store.ErrNotFound
	}

	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range products {
		if strings.EqualFold(p.Category, target.Name) {
			return fmt.Errorf("%w: category %q is still in use", store.ErrConflict, target.Name)
		}
	}

	return e.repo.DeleteCategory(ctx, id)
}

func (e *Engine) AddUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.User{}, fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := e.repo.InsertUser(ctx, domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	return *created, nil
}

// DeleteUser removes an account. Deleting your own account is rejected so an
// admin cannot lock themselves out mid-session.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: user id required", store.ErrInvalidInput)
	}

	users, err := e.repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	actor, _ := ActorFromContext(ctx)
	for _, u := range users {
		if u.ID == id {
			if strings.EqualFold(u.Username, actor.Username) {
				return fmt.Errorf("%w: cannot delete your own account", store.ErrInvalidInput)
			}
			return e.repo.DeleteUser(ctx, id)
		}
	}
	return store.ErrNotFound
}

// applyStockDelta moves one product's quantity by delta. In conditional mode
// the write only lands if the quantity is still what we read; on conflict the
// product is re-read and the write retried a bounded number of times.
func (e *Engine) applyStockDelta(ctx context.Context, product domain.Product, delta int) (domain.Product, error) {
	if !e.conditionalStock {
		next := product.Quantity + delta
		if next < 0 {
			return product, fmt.Errorf("%w: insufficient stock for %s", store.ErrInvalidInput, product.Name)
		}
		product.Quantity = next
		saved, err := e.repo.ReplaceProduct(ctx, product)
		if err != nil {
			return product, err
		}
		return *saved, nil
	}

	for attempt := 0; attempt < e.maxStockRetries; attempt++ {
		next := product.Quantity + delta
		if next < 0 {
			return product, fmt.Errorf("%w: insufficient stock for %s", store.ErrInvalidInput, product.Name)
		}

		err := e.repo.ReplaceProductQuantity(ctx, product.ID, product.Quantity, next)
		if err == nil {
			product.Quantity = next
			return product, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return product, err
		}

		fresh, err := e.repo.GetProduct(ctx, product.ID)
		if err != nil {
			return product, err
		}
		product = *fresh
	}

	return product, fmt.Errorf("%w: stock for %s kept moving, giving up", store.ErrConflict, product.Name)
}

// resolveCategory matches the submitted category name against the stored
// categories case-insensitively and returns the canonical stored name.
func (e *Engine) resolveCategory(ctx context.Context, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: category required", store.ErrInvalidInput)
	}

	categories, err := e.repo.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, trimmed) {
			return c.Name, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", store.ErrInvalidInput, trimmed)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	return nil
}
