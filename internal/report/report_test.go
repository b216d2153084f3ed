package report

import (
	"math"
	"testing"
	"time"

	"dokon/backend/internal/domain"
)

var testNow = time.Date(2024, time.March, 15, 14, 0, 0, 0, time.UTC)

func chiqim(productID, name string, qty int, price float64, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          "tx-" + productID + at.Format("150405"),
		ProductID:   productID,
		ProductName: name,
		Type:        domain.TxChiqim,
		Quantity:    qty,
		Price:       price,
		Date:        at,
		TotalAmount: float64(qty) * price,
		PaidAmount:  float64(qty) * price,
		PaymentType: domain.PaymentFull,
	}
}

func TestDashboardStatsSplitsTodayFromLedgerWideDebt(t *testing.T) {
	yesterday := testNow.AddDate(0, 0, -1)

	old := chiqim("p1", "Choy", 2, 10000, yesterday)
	old.PaidAmount = 5000
	old.Debt = 15000
	old.CustomerName = "Karim aka"
	old.PaymentType = domain.PaymentDebt

	transactions := []domain.Transaction{
		old,
		chiqim("p2", "Shakar", 3, 20000, testNow),
		{ProductID: "p1", Type: domain.TxKirim, Quantity: 10, Price: 8000, Date: testNow},
	}
	products := []domain.Product{{ID: "p1"}, {ID: "p2"}}

	stats := DashboardStats(products, transactions, testNow)

	if stats.TodaySales != 60000 {
		t.Fatalf("today's sales must only count today's chiqim: got %v", stats.TodaySales)
	}
	if stats.TodayItems != 3 {
		t.Fatalf("expected 3 items today, got %d", stats.TodayItems)
	}
	if stats.TotalDebt != 15000 {
		t.Fatalf("debt is summed over the whole ledger: got %v", stats.TotalDebt)
	}
	if stats.TotalProducts != 2 {
		t.Fatalf("expected 2 products, got %d", stats.TotalProducts)
	}
}

func TestTopProductsRanksByRevenueWithStableTies(t *testing.T) {
	transactions := []domain.Transaction{
		chiqim("p-a", "Olma", 1, 5000, testNow),
		chiqim("p-b", "Anor", 1, 5000, testNow),
		chiqim("p-c", "Uzum", 1, 9000, testNow),
		chiqim("p-a", "Olma", 1, 4000, testNow),
	}

	top := TopProducts(nil, transactions, 10)
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	if top[0].ProductID != "p-a" || top[0].Revenue != 9000 {
		t.Fatalf("expected p-a first with 9000, got %+v", top[0])
	}
	// p-c ties p-a at 9000 but appeared later in the ledger.
	if top[1].ProductID != "p-c" {
		t.Fatalf("ties must keep first-appearance order, got %+v", top[1])
	}
	if top[2].ProductID != "p-b" {
		t.Fatalf("expected p-b last, got %+v", top[2])
	}
}

func TestTopProductsLimitAndNameFallback(t *testing.T) {
	transactions := make([]domain.Transaction, 0, 12)
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		tx := chiqim("p-"+id, "", 1, float64(1000*(12-i)), testNow)
		transactions = append(transactions, tx)
	}
	products := []domain.Product{{ID: "p-a", Name: "Olma"}}

	top := TopProducts(products, transactions, 10)
	if len(top) != 10 {
		t.Fatalf("expected top list capped at 10, got %d", len(top))
	}
	if top[0].ProductID != "p-a" || top[0].Name != "Olma" {
		t.Fatalf("expected live-product name fallback for p-a, got %+v", top[0])
	}
	if top[1].Name != "" {
		t.Fatalf("no fallback exists for p-b, got %+v", top[1])
	}
}

func TestDailySeriesZeroFillsSevenDays(t *testing.T) {
	transactions := []domain.Transaction{
		chiqim("p1", "Choy", 2, 10000, testNow.AddDate(0, 0, -2)),
		chiqim("p1", "Choy", 1, 10000, testNow),
		// Older than the window: must not appear.
		chiqim("p1", "Choy", 9, 10000, testNow.AddDate(0, 0, -10)),
	}

	series := DailySeries(transactions, testNow)
	if len(series) != 7 {
		t.Fatalf("expected 7 points, got %d", len(series))
	}
	if series[6].Total != 10000 {
		t.Fatalf("expected today's total last, got %+v", series[6])
	}
	if series[4].Total != 20000 {
		t.Fatalf("expected 20000 two days back, got %+v", series[4])
	}
	for i, point := range series {
		if i != 4 && i != 6 && point.Total != 0 {
			t.Fatalf("expected zero-filled day at %d: %+v", i, point)
		}
	}
}

func TestMonthlySeriesUsesCollectedAmounts(t *testing.T) {
	lastMonth := testNow.AddDate(0, -1, 0)

	debtSale := chiqim("p1", "Choy", 2, 10000, lastMonth)
	debtSale.PaidAmount = 12000
	debtSale.Debt = 8000

	unpaid := chiqim("p2", "Shakar", 1, 30000, lastMonth)
	unpaid.PaidAmount = 0
	unpaid.Debt = 30000

	transactions := []domain.Transaction{
		debtSale,
		unpaid,
		{ProductID: "p1", Type: domain.TxKirim, Quantity: 5, Price: 8000, Date: lastMonth},
		// Outside the 12-month window.
		chiqim("p1", "Choy", 1, 10000, testNow.AddDate(-2, 0, 0)),
	}

	series := MonthlySeries(transactions, testNow)
	if len(series) != 12 {
		t.Fatalf("expected 12 points, got %d", len(series))
	}

	point := series[10] // last month
	if point.Month != lastMonth.Format("Jan 2006") {
		t.Fatalf("unexpected month label %q", point.Month)
	}
	if point.Kirim != 40000 {
		t.Fatalf("expected kirim 40000, got %v", point.Kirim)
	}
	// 12000 collected plus the unpaid line at face value.
	if point.Chiqim != 42000 {
		t.Fatalf("expected chiqim 42000, got %v", point.Chiqim)
	}

	total := 0.0
	for _, p := range series {
		total += p.Chiqim
	}
	if total != 42000 {
		t.Fatalf("out-of-window lines must be dropped, total %v", total)
	}
}

func TestPeriodStatsProfitAndUniqueCustomers(t *testing.T) {
	recent := testNow.AddDate(0, 0, -3)

	saleA := chiqim("p1", "Choy", 2, 10000, recent)
	saleA.CustomerName = "Karim aka"
	saleB := chiqim("p2", "Shakar", 1, 20000, recent)
	saleB.CustomerName = "Karim aka"
	saleC := chiqim("p1", "Choy", 1, 10000, recent)
	saleC.CustomerName = domain.WalkInCustomer

	transactions := []domain.Transaction{
		saleA, saleB, saleC,
		{ProductID: "p1", Type: domain.TxKirim, Quantity: 4, Price: 7000, Date: recent},
		// Outside a week-long window.
		chiqim("p1", "Choy", 5, 10000, testNow.AddDate(0, 0, -20)),
	}

	stats := PeriodStats(transactions, testNow, PeriodWeek)
	if stats.Kirim != 28000 {
		t.Fatalf("expected kirim 28000, got %v", stats.Kirim)
	}
	if stats.Chiqim != 50000 {
		t.Fatalf("expected chiqim 50000, got %v", stats.Chiqim)
	}
	if stats.Profit != 22000 {
		t.Fatalf("expected profit 22000, got %v", stats.Profit)
	}
	if stats.UniqueCustomers != 1 {
		t.Fatalf("walk-in sales must not count as customers, got %d", stats.UniqueCustomers)
	}
}

func TestCategoryBreakdownFollowsCurrentCategory(t *testing.T) {
	products := []domain.Product{
		{ID: "p1", Name: "Choy", Category: "Ichimliklar"},
	}
	transactions := []domain.Transaction{
		// Sold while the product may have been categorised differently;
		// the breakdown uses the category it has now.
		chiqim("p1", "Choy", 2, 10000, testNow),
		// Product deleted since: drops out entirely.
		chiqim("p-gone", "Eski mahsulot", 1, 50000, testNow),
	}

	breakdown := CategoryBreakdown(products, transactions, testNow, PeriodMonth)
	if len(breakdown) != 1 {
		t.Fatalf("expected a single category, got %+v", breakdown)
	}
	if breakdown[0].Category != "Ichimliklar" || breakdown[0].Revenue != 20000 {
		t.Fatalf("unexpected breakdown: %+v", breakdown[0])
	}
}

func TestDebtorsRanksDescending(t *testing.T) {
	mk := func(customer string, debt float64) domain.Transaction {
		tx := chiqim("p1", "Choy", 1, debt, testNow)
		tx.PaidAmount = 0
		tx.Debt = debt
		tx.CustomerName = customer
		tx.PaymentType = domain.PaymentDebt
		return tx
	}

	transactions := []domain.Transaction{
		mk("Karim aka", 5000),
		mk("Malika opa", 20000),
		mk("Karim aka", 10000),
	}

	debtors := Debtors(transactions, 10)
	if len(debtors) != 2 {
		t.Fatalf("expected 2 debtors, got %d", len(debtors))
	}
	if debtors[0].CustomerName != "Malika opa" || debtors[0].Debt != 20000 {
		t.Fatalf("expected Malika opa first, got %+v", debtors[0])
	}
	if debtors[1].Debt != 15000 {
		t.Fatalf("expected Karim aka's debts summed to 15000, got %+v", debtors[1])
	}
}

func TestSalesReconstructionGroupsBySaleID(t *testing.T) {
	lineA := chiqim("p1", "Choy", 1, 10000, testNow)
	lineA.SaleID = "sale-1"
	lineA.PaidAmount = 5000
	lineA.Debt = 5000
	lineA.CustomerName = "Karim aka"
	lineA.PaymentType = domain.PaymentDebt

	lineB := chiqim("p2", "Shakar", 1, 20000, testNow)
	lineB.SaleID = "sale-1"
	lineB.PaidAmount = 10000
	lineB.Debt = 10000
	lineB.CustomerName = "Karim aka"
	lineB.PaymentType = domain.PaymentDebt

	// Pre-grouping line: no SaleID, becomes its own sale keyed by its id.
	legacy := chiqim("p3", "Non", 2, 3000, testNow.AddDate(0, 0, -1))
	legacy.ID = "tx-legacy"
	legacy.TotalAmount = 0
	legacy.PaidAmount = 0
	legacy.CustomerName = ""

	sales := Sales([]domain.Transaction{lineA, lineB, legacy}, testNow, PeriodAll, "")
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(sales))
	}

	grouped := sales[0] // newest first
	if grouped.SaleID != "sale-1" || len(grouped.Items) != 2 {
		t.Fatalf("expected grouped sale first, got %+v", grouped)
	}
	if grouped.TotalAmount != 30000 || grouped.PaidAmount != 15000 || grouped.Debt != 15000 {
		t.Fatalf("sale must sum its lines: %+v", grouped)
	}
	if math.Abs(grouped.TotalAmount-(grouped.PaidAmount+grouped.Debt)) > 1e-6 {
		t.Fatalf("total must decompose into paid+debt: %+v", grouped)
	}

	single := sales[1]
	if single.SaleID != "tx-legacy" || single.CustomerName != domain.WalkInCustomer {
		t.Fatalf("legacy line must fall back to its own id and the walk-in bucket: %+v", single)
	}
	// Gross fallback when no total was recorded.
	if single.TotalAmount != 6000 {
		t.Fatalf("expected gross fallback 6000, got %v", single.TotalAmount)
	}
}

func TestSalesSearchMatchesCustomerAndProduct(t *testing.T) {
	lineA := chiqim("p1", "Choy", 1, 10000, testNow)
	lineA.SaleID = "sale-1"
	lineA.CustomerName = "Karim aka"

	lineB := chiqim("p2", "Shakar", 1, 20000, testNow)
	lineB.SaleID = "sale-2"
	lineB.CustomerName = domain.WalkInCustomer

	transactions := []domain.Transaction{lineA, lineB}

	if got := Sales(transactions, testNow, PeriodAll, "karim"); len(got) != 1 || got[0].SaleID != "sale-1" {
		t.Fatalf("customer search failed: %+v", got)
	}
	if got := Sales(transactions, testNow, PeriodAll, "shakar"); len(got) != 1 || got[0].SaleID != "sale-2" {
		t.Fatalf("product search failed: %+v", got)
	}
	if got := Sales(transactions, testNow, PeriodAll, "yo'q"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestPeriodStartBounds(t *testing.T) {
	if got := PeriodDay.Start(testNow); !got.Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day start wrong: %v", got)
	}
	if got := PeriodWeek.Start(testNow); !got.Equal(testNow.AddDate(0, 0, -7)) {
		t.Fatalf("week start wrong: %v", got)
	}
	if got := PeriodAll.Start(testNow); !got.IsZero() {
		t.Fatalf("all must have no lower bound: %v", got)
	}
	if ParsePeriod("nonsense") != PeriodMonth {
		t.Fatalf("unknown period must default to month")
	}
}
