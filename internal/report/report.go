// Package report derives every dashboard and statistics view from the raw
// ledger. All functions are pure: they read the product and transaction
// slices they are handed and never touch storage or mutate their inputs.
package report

import (
	"slices"
	"strings"
	"time"

	"dokon/backend/internal/domain"
)

// Period selects how far back a filtered view reaches, always ending at now.
type Period string

const (
	PeriodDay       Period = "day"
	PeriodYesterday Period = "yesterday"
	PeriodWeek      Period = "week"
	PeriodMonth     Period = "month"
	PeriodYear      Period = "year"
	PeriodAll       Period = "all"
)

// Start returns the inclusive lower bound for the period. Week and month are
// rolling windows from now, not calendar-aligned; day starts at local
// midnight. Yesterday opens at yesterday's midnight with no upper bound.
func (p Period) Start(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return startOfDay(now)
	case PeriodYesterday:
		return startOfDay(now).AddDate(0, 0, -1)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

// ParsePeriod maps a query-string value to a Period, defaulting to month.
func ParsePeriod(raw string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodDay:
		return PeriodDay
	case PeriodYesterday:
		return PeriodYesterday
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	case PeriodYear:
		return PeriodYear
	case PeriodAll:
		return PeriodAll
	default:
		return PeriodMonth
	}
}

// DashboardStats summarises today's trade. Today's sales are valued gross
// (quantity times price), while the debt card sums outstanding debt over the
// whole ledger, not just today. That mismatch is what the shop expects to
// see: the day's turnover next to everything it is still owed.
func DashboardStats(products []domain.Product, transactions []domain.Transaction, now time.Time) domain.DashboardStats {
	today := startOfDay(now)

	stats := domain.DashboardStats{TotalProducts: len(products)}
	for _, t := range transactions {
		if t.Type != domain.TxChiqim {
			continue
		}
		if !t.Date.Before(today) {
			stats.TodaySales += float64(t.Quantity) * t.Price
			stats.TodayItems += t.Quantity
		}
		if t.Debt > 0 {
			stats.TotalDebt += t.Debt
		}
	}
	return stats
}

// PeriodStats aggregates the selected window. Chiqim is counted as money
// collected: the paid amount when one was recorded, otherwise the gross line
// value. Profit is collected minus restock spend.
func PeriodStats(transactions []domain.Transaction, now time.Time, period Period) domain.PeriodStats {
	start := period.Start(now)
	customers := make(map[string]struct{})

	var stats domain.PeriodStats
	for _, t := range transactions {
		if t.Date.Before(start) {
			continue
		}
		switch t.Type {
		case domain.TxKirim:
			stats.Kirim += float64(t.Quantity) * t.Price
		case domain.TxChiqim:
			stats.Chiqim += collectedAmount(t)
			stats.Debt += t.Debt
			if t.CustomerName != "" && t.CustomerName != domain.WalkInCustomer {
				customers[t.CustomerName] = struct{}{}
			}
		}
	}

	stats.Profit = stats.Chiqim - stats.Kirim
	stats.UniqueCustomers = len(customers)
	return stats
}

// TopProducts ranks products by chiqim revenue, highest first, keeping first
// ledger appearance order between equal revenues. The name is the snapshot
// from the ledger line, falling back to the live product list for old lines
// written without one.
func TopProducts(products []domain.Product, transactions []domain.Transaction, limit int) []domain.ProductSales {
	byID := make(map[string]*domain.ProductSales)
	order := make([]string, 0)

	for _, t := range transactions {
		if t.Type != domain.TxChiqim {
			continue
		}
		entry, ok := byID[t.ProductID]
		if !ok {
			entry = &domain.ProductSales{ProductID: t.ProductID, Name: t.ProductName}
			byID[t.ProductID] = entry
			order = append(order, t.ProductID)
		}
		entry.Quantity += t.Quantity
		entry.Revenue += float64(t.Quantity) * t.Price
	}

	ranked := make([]domain.ProductSales, 0, len(order))
	for _, id := range order {
		entry := *byID[id]
		if entry.Name == "" {
			entry.Name = liveProductName(products, id)
		}
		ranked = append(ranked, entry)
	}

	slices.SortStableFunc(ranked, func(a, b domain.ProductSales) int {
		switch {
		case a.Revenue > b.Revenue:
			return -1
		case a.Revenue < b.Revenue:
			return 1
		default:
			return 0
		}
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// DailySeries returns gross chiqim per calendar day for the trailing seven
// days ending today. Days without sales appear with a zero total.
func DailySeries(transactions []domain.Transaction, now time.Time) []domain.DailyPoint {
	points := make([]domain.DailyPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		day := startOfDay(now).AddDate(0, 0, -i)
		next := day.AddDate(0, 0, 1)

		total := 0.0
		for _, t := range transactions {
			if t.Type != domain.TxChiqim {
				continue
			}
			at := t.Date.In(now.Location())
			if !at.Before(day) && at.Before(next) {
				total += float64(t.Quantity) * t.Price
			}
		}
		points = append(points, domain.DailyPoint{
			Date:  day.Format("2 Jan"),
			Total: total,
		})
	}
	return points
}

// MonthlySeries buckets the whole ledger into the trailing twelve calendar
// months: kirim valued gross, chiqim as money collected. Lines older than the
// window are dropped; empty months stay at zero.
func MonthlySeries(transactions []domain.Transaction, now time.Time) []domain.MonthlyPoint {
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	index := make(map[string]int, 12)
	points := make([]domain.MonthlyPoint, 0, 12)
	for i := 11; i >= 0; i-- {
		month := anchor.AddDate(0, -i, 0)
		key := month.Format("Jan 2006")
		index[key] = len(points)
		points = append(points, domain.MonthlyPoint{Month: key})
	}

	for _, t := range transactions {
		key := t.Date.In(now.Location()).Format("Jan 2006")
		at, ok := index[key]
		if !ok {
			continue
		}
		switch t.Type {
		case domain.TxKirim:
			points[at].Kirim += float64(t.Quantity) * t.Price
		case domain.TxChiqim:
			points[at].Chiqim += collectedAmount(t)
		}
	}

	return points
}

// CategoryBreakdown sums gross chiqim revenue per category for the window.
// The category comes from the product list as it is NOW, so past sales follow
// a product when it is recategorised, and sales of since-deleted products
// drop out entirely.
func CategoryBreakdown(products []domain.Product, transactions []domain.Transaction, now time.Time, period Period) []domain.CategorySales {
	start := period.Start(now)

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	totals := make(map[string]*domain.CategorySales)
	order := make([]string, 0)
	for _, t := range transactions {
		if t.Type != domain.TxChiqim || t.Date.Before(start) {
			continue
		}
		product, ok := byID[t.ProductID]
		if !ok {
			continue
		}
		entry, ok := totals[product.Category]
		if !ok {
			entry = &domain.CategorySales{Category: product.Category}
			totals[product.Category] = entry
			order = append(order, product.Category)
		}
		entry.Revenue += float64(t.Quantity) * t.Price
	}

	breakdown := make([]domain.CategorySales, 0, len(order))
	for _, category := range order {
		breakdown = append(breakdown, *totals[category])
	}
	slices.SortStableFunc(breakdown, func(a, b domain.CategorySales) int {
		switch {
		case a.Revenue > b.Revenue:
			return -1
		case a.Revenue < b.Revenue:
			return 1
		default:
			return 0
		}
	})
	return breakdown
}

// Debtors ranks customers by outstanding debt across the whole ledger,
// highest first. Walk-in sales never carry debt so the sentinel bucket never
// shows up here.
func Debtors(transactions []domain.Transaction, limit int) []domain.Debtor {
	totals := make(map[string]*domain.Debtor)
	order := make([]string, 0)

	for _, t := range transactions {
		if t.Type != domain.TxChiqim || t.Debt <= 0 {
			continue
		}
		entry, ok := totals[t.CustomerName]
		if !ok {
			entry = &domain.Debtor{CustomerName: t.CustomerName}
			totals[t.CustomerName] = entry
			order = append(order, t.CustomerName)
		}
		entry.Debt += t.Debt
	}

	debtors := make([]domain.Debtor, 0, len(order))
	for _, name := range order {
		debtors = append(debtors, *totals[name])
	}
	slices.SortStableFunc(debtors, func(a, b domain.Debtor) int {
		switch {
		case a.Debt > b.Debt:
			return -1
		case a.Debt < b.Debt:
			return 1
		default:
			return 0
		}
	})

	if limit > 0 && len(debtors) > limit {
		debtors = debtors[:limit]
	}
	return debtors
}

// Sales reassembles checkouts from their chiqim lines. Lines written before
// sale grouping existed have no SaleID and become single-line sales keyed by
// their own transaction id. The search term matches the customer name or any
// line's product name, case-insensitively.
func Sales(transactions []domain.Transaction, now time.Time, period Period, search string) []domain.Sale {
	byID := make(map[string]*domain.Sale)
	order := make([]string, 0)

	for _, t := range transactions {
		if t.Type != domain.TxChiqim {
			continue
		}
		saleID := t.SaleID
		if saleID == "" {
			saleID = t.ID
		}

		sale, ok := byID[saleID]
		if !ok {
			customer := t.CustomerName
			if customer == "" {
				customer = domain.WalkInCustomer
			}
			sale = &domain.Sale{
				SaleID:       saleID,
				Date:         t.Date,
				CustomerName: customer,
				PaymentType:  t.PaymentType,
			}
			byID[saleID] = sale
			order = append(order, saleID)
		}

		sale.Items = append(sale.Items, t)
		if t.TotalAmount != 0 {
			sale.TotalAmount += t.TotalAmount
		} else {
			sale.TotalAmount += float64(t.Quantity) * t.Price
		}
		sale.PaidAmount += t.PaidAmount
		sale.Debt += t.Debt
	}

	start := period.Start(now)
	term := strings.ToLower(strings.TrimSpace(search))

	sales := make([]domain.Sale, 0, len(order))
	for _, id := range order {
		sale := *byID[id]
		if period != PeriodAll && sale.Date.Before(start) {
			continue
		}
		if term != "" && !saleMatches(sale, term) {
			continue
		}
		sales = append(sales, sale)
	}

	slices.SortStableFunc(sales, func(a, b domain.Sale) int {
		switch {
		case a.Date.After(b.Date):
			return -1
		case a.Date.Before(b.Date):
			return 1
		default:
			return 0
		}
	})
	return sales
}

// Dashboard bundles the cacheable dashboard payload.
func Dashboard(products []domain.Product, transactions []domain.Transaction, now time.Time) domain.DashboardSnapshot {
	return domain.DashboardSnapshot{
		Stats:       DashboardStats(products, transactions, now),
		TopProducts: TopProducts(products, transactions, 10),
		DailySales:  DailySeries(transactions, now),
		GeneratedAt: now.Format(time.RFC3339),
	}
}

func saleMatches(sale domain.Sale, term string) bool {
	if strings.Contains(strings.ToLower(sale.CustomerName), term) {
		return true
	}
	for _, item := range sale.Items {
		if strings.Contains(strings.ToLower(item.ProductName), term) {
			return true
		}
	}
	return false
}

// collectedAmount values a chiqim line as the money actually received,
// falling back to the gross line value when no paid amount was recorded. A
// recorded zero also falls through, so an all-debt line counts at face value
// in turnover views, matching how the ledger has always been read.
func collectedAmount(t domain.Transaction) float64 {
	if t.PaidAmount != 0 {
		return t.PaidAmount
	}
	return float64(t.Quantity) * t.Price
}

func liveProductName(products []domain.Product, id string) string {
	for _, p := range products {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
