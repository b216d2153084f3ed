package domain

import "time"

// Transaction types. Kirim and chiqim are the shop's own words for goods
// coming in (restock) and going out (sale); adjustments record manual
// quantity corrections made from the product editor.
const (
	TxKirim      = "kirim"
	TxChiqim     = "chiqim"
	TxAdjustment = "adjustment"
)

// Payment types for chiqim transactions.
const (
	PaymentFull = "full"
	PaymentDebt = "debt"
)

// WalkInCustomer is the sentinel customer name used for cash sales where no
// customer was named. It groups under a single "Naqd" bucket in reports and
// never counts as a debtor or a unique customer.
const WalkInCustomer = "Naqd"

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Barcode   string    `json:"barcode,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is one ledger line. Kirim and adjustment lines carry only the
// product fields; chiqim lines additionally carry the sale group and money
// breakdown. ProductName and Price are snapshots taken at write time so the
// ledger stays readable after the product is edited or deleted.
type Transaction struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	Date        time.Time `json:"date"`

	SaleID       string  `json:"sale_id,omitempty"`
	TotalAmount  float64 `json:"total_amount,omitempty"`
	PaidAmount   float64 `json:"paid_amount,omitempty"`
	Debt         float64 `json:"debt,omitempty"`
	CustomerName string  `json:"customer_name,omitempty"`
	PaymentType  string  `json:"payment_type,omitempty"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor identifies the authenticated user on whose behalf an operation runs.
type Actor struct {
	Username string
	Role     string
}

type ProductCreateRequest struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category" validate:"required"`
	Price    float64 `json:"price" validate:"min=0"`
	Barcode  string  `json:"barcode"`
	Quantity int     `json:"quantity" validate:"min=0"`
}

type ProductUpdateRequest struct {
	Name     string  `json:"name" validate:"required"`
	Category string  `json:"category" validate:"required"`
	Price    float64 `json:"price" validate:"min=0"`
	Barcode  string  `json:"barcode"`
	Quantity int     `json:"quantity" validate:"min=0"`
}

type RestockLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type RestockRequest struct {
	Lines []RestockLine `json:"lines" validate:"required,min=1,dive"`
}

type RestockResult struct {
	Transactions []Transaction `json:"transactions"`
}

type SaleLine struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

type SaleRequest struct {
	Items        []SaleLine `json:"items" validate:"required,min=1,dive"`
	PaymentType  string     `json:"payment_type" validate:"required,oneof=full debt"`
	CustomerName string     `json:"customer_name"`
	PaidAmount   float64    `json:"paid_amount" validate:"min=0"`
}

type SaleResult struct {
	SaleID       string        `json:"sale_id"`
	TotalAmount  float64       `json:"total_amount"`
	PaidAmount   float64       `json:"paid_amount"`
	Debt         float64       `json:"debt"`
	Transactions []Transaction `json:"transactions"`
}

type CategoryCreateRequest struct {
	Name string `json:"name" validate:"required"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=4"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// Reporting output shapes. All of these are derived from the ledger and the
// live product list; none are stored.

type DashboardStats struct {
	TodaySales    float64 `json:"today_sales"`
	TodayItems    int     `json:"today_items"`
	TotalDebt     float64 `json:"total_debt"`
	TotalProducts int     `json:"total_products"`
}

type ProductSales struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

type DailyPoint struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

type MonthlyPoint struct {
	Month  string  `json:"month"`
	Kirim  float64 `json:"kirim"`
	Chiqim float64 `json:"chiqim"`
}

type CategorySales struct {
	Category string  `json:"category"`
	Revenue  float64 `json:"revenue"`
}

type PeriodStats struct {
	Kirim           float64 `json:"kirim"`
	Chiqim          float64 `json:"chiqim"`
	Debt            float64 `json:"debt"`
	Profit          float64 `json:"profit"`
	UniqueCustomers int     `json:"unique_customers"`
}

type Debtor struct {
	CustomerName string  `json:"customer_name"`
	Debt         float64 `json:"debt"`
}

// Sale is a reconstructed checkout: the chiqim transactions that share one
// SaleID, with the money fields summed back together.
type Sale struct {
	SaleID       string        `json:"sale_id"`
	Date         time.Time     `json:"date"`
	CustomerName string        `json:"customer_name"`
	PaymentType  string        `json:"payment_type"`
	TotalAmount  float64       `json:"total_amount"`
	PaidAmount   float64       `json:"paid_amount"`
	Debt         float64       `json:"debt"`
	Items        []Transaction `json:"items"`
}

// DashboardSnapshot is the cacheable payload behind the dashboard endpoint.
type DashboardSnapshot struct {
	Stats       DashboardStats `json:"stats"`
	TopProducts []ProductSales `json:"top_products"`
	DailySales  []DailyPoint   `json:"daily_sales"`
	GeneratedAt string         `json:"generated_at"`
}
