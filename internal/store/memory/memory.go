package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"dokon/backend/internal/domain"
	"dokon/backend/internal/store"
)

// Store is the in-memory repository used for dev mode and tests. It keeps
// insertion order for transactions so ledger reads are deterministic.
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	categories   map[string]domain.Category
	transactions []domain.Transaction
	users        map[string]domain.User
}

func New() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		categories:   make(map[string]domain.Category),
		transactions: make([]domain.Transaction, 0, 128),
		users:        make(map[string]domain.User),
	}
}

// NewSeeded returns a store preloaded with demo categories, products, and the
// two default accounts. Seed credentials come from SEED_ADMIN_PASSWORD and
// SEED_USER_PASSWORD; hardcoded dev defaults are used when unset.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, name := range []string{"Elektronika", "Kiyim", "Kitoblar", "Oziq-ovqat", "Uy-ro'zg'or", "Sport"} {
		id := uuid.NewString()
		s.categories[id] = domain.Category{ID: id, Name: name, CreatedAt: now}
	}

	for _, p := range []domain.Product{
		{Name: "Choy Ahmad 100g", Category: "Oziq-ovqat", Price: 18000, Barcode: "478000000101", Quantity: 40},
		{Name: "Shakar 1kg", Category: "Oziq-ovqat", Price: 12500, Barcode: "478000000102", Quantity: 60},
		{Name: "Quloqchin simsiz", Category: "Elektronika", Price: 185000, Barcode: "478000000201", Quantity: 12},
		{Name: "Futbolka oq", Category: "Kiyim", Price: 65000, Quantity: 25},
		{Name: "Daftar 96 varaq", Category: "Kitoblar", Price: 7000, Quantity: 100},
		{Name: "Koptok futbol", Category: "Sport", Price: 95000, Quantity: 8},
	} {
		p.ID = uuid.NewString()
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	for username, u := range seedUsers(now) {
		u.ID = uuid.NewString()
		u.Username = username
		s.users[u.ID] = u
	}

	return s
}

func seedUsers(now time.Time) map[string]domain.User {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	userPwd := envOr("SEED_USER_PASSWORD", "sotuvchi123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_USER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_USER_PASSWORD to override.")
	}

	users := map[string]domain.User{}
	for _, u := range []struct {
		username string
		password string
		name     string
		role     string
	}{
		{"admin", adminPwd, "Administrator", domain.RoleAdmin},
		{"sotuvchi", userPwd, "Sotuvchi", domain.RoleUser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.User{
			PasswordHash: string(hash),
			Name:         u.name,
			Role:         u.role,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) InsertProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.Price < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) ReplaceProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.Price < 0 || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ReplaceProductQuantity(_ context.Context, id string, expectedQty int, newQty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[id]
	if !exists {
		return store.ErrNotFound
	}
	if newQty < 0 {
		return store.ErrInvalidInput
	}
	if product.Quantity != expectedQty {
		return fmt.Errorf("%w: quantity moved from %d", store.ErrConflict, expectedQty)
	}

	product.Quantity = newQty
	s.products[id] = product
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}

	slices.SortFunc(categories, func(a, b domain.Category) int {
		return cmpString(a.Name, b.Name)
	})

	return categories, nil
}

func (s *Store) InsertCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("%w: category %q already exists", store.ErrConflict, existing.Name)
		}
	}

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.categories[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := make([]domain.Transaction, len(s.transactions))
	copy(transactions, s.transactions)
	return transactions, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ProductID == "" || tx.Type == "" {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}

	s.transactions = append(s.transactions, tx)
	created := tx
	return &created, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}

	slices.SortFunc(users, func(a, b domain.User) int {
		return cmpString(a.Username, b.Username)
	})

	return users, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			copyUser := u
			return &copyUser, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) InsertUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Username == "" || user.PasswordHash == "" || user.Role == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return nil, fmt.Errorf("%w: username %q already exists", store.ErrConflict, user.Username)
		}
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	s.users[user.ID] = user
	created := user
	return &created, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			u.PasswordHash = passwordHash
			s.users[id] = u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
