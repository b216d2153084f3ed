package store

import (
	"context"
	"errors"

	"dokon/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Repository is the persistence boundary for the ledger. Implementations
// assign document ids on insert and return copies, never internal pointers.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ReplaceProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// ReplaceProductQuantity writes newQty only if the stored quantity still
	// equals expectedQty, returning ErrConflict otherwise. It backs the
	// conditional stock mode; plain ReplaceProduct is last-write-wins.
	ReplaceProductQuantity(ctx context.Context, id string, expectedQty int, newQty int) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	InsertCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	InsertUser(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	DeleteUser(ctx context.Context, id string) error
}
