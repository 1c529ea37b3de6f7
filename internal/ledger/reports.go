package ledger

import (
	"fmt"
	"slices"
	"time"

	"expensebook/internal/core"
)

// DefaultTrendMonths is used by SpendingTrends when months is not positive.
const DefaultTrendMonths = 6

type MonthlyReport struct {
	Year              int                   `json:"year"`
	Month             time.Month            `json:"month"`
	MonthName         string                `json:"monthName"`
	TotalSpent        core.Money            `json:"totalSpent"`
	TransactionCount  int                   `json:"transactionCount"`
	CategoryBreakdown map[string]core.Money `json:"categoryBreakdown"`
	Transactions      []core.Transaction    `json:"transactions"`
}

type WeeklyReport struct {
	StartDate         string                `json:"startDate"`
	EndDate           string                `json:"endDate"`
	TotalSpent        core.Money            `json:"totalSpent"`
	TransactionCount  int                   `json:"transactionCount"`
	CategoryBreakdown map[string]core.Money `json:"categoryBreakdown"`
	DailyBreakdown    map[string]core.Money `json:"dailyBreakdown"`
}

// TrendPoint is one month of SpendingTrends.
type TrendPoint struct {
	Period           string     `json:"period"`
	TotalSpent       core.Money `json:"totalSpent"`
	TransactionCount int        `json:"transactionCount"`
}

func (r MonthlyReport) clone() MonthlyReport {
	r.CategoryBreakdown = cloneBreakdown(r.CategoryBreakdown)
	r.Transactions = slices.Clone(r.Transactions)
	return r
}

// MonthlyReport summarizes the active transactions dated in the given
// month. Out of range months are normalized the way time.Date does.
func (l *Ledger) MonthlyReport(year int, month time.Month) MonthlyReport {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	key := start.Format("2006-01")
	if cached, ok := l.reports.Get(key); ok {
		return cached.clone()
	}

	end := start.AddDate(0, 1, 0)
	report := MonthlyReport{
		Year:              start.Year(),
		Month:             start.Month(),
		MonthName:         start.Month().String(),
		CategoryBreakdown: make(map[string]core.Money),
		Transactions:      []core.Transaction{},
	}
	for _, tx := range l.transactions {
		d := tx.Expense.Date.Time
		if !tx.Active || d.Before(start) || !d.Before(end) {
			continue
		}
		report.TotalSpent = report.TotalSpent.Add(tx.Expense.Amount)
		report.TransactionCount++
		report.CategoryBreakdown[tx.Expense.Category] = report.CategoryBreakdown[tx.Expense.Category].Add(tx.Expense.Amount)
		report.Transactions = append(report.Transactions, tx)
	}

	l.reports.Set(key, report.clone())
	return report
}

// CurrentMonthlyReport is MonthlyReport for the clock's current month.
func (l *Ledger) CurrentMonthlyReport() MonthlyReport {
	now := l.now()
	return l.MonthlyReport(now.Year(), now.Month())
}

// WeeklyReport summarizes the active transactions in the Sunday to
// Saturday week containing date.
func (l *Ledger) WeeklyReport(date core.Date) WeeklyReport {
	day := core.DateOf(date.Time).Time
	start := day.AddDate(0, 0, -int(day.Weekday()))
	end := start.AddDate(0, 0, 7)

	report := WeeklyReport{
		StartDate:         start.Format(time.DateOnly),
		EndDate:           end.AddDate(0, 0, -1).Format(time.DateOnly),
		CategoryBreakdown: make(map[string]core.Money),
		DailyBreakdown:    make(map[string]core.Money),
	}
	for _, tx := range l.transactions {
		d := tx.Expense.Date.Time
		if !tx.Active || d.Before(start) || !d.Before(end) {
			continue
		}
		amount := tx.Expense.Amount
		report.TotalSpent = report.TotalSpent.Add(amount)
		report.TransactionCount++
		report.CategoryBreakdown[tx.Expense.Category] = report.CategoryBreakdown[tx.Expense.Category].Add(amount)
		dayKey := tx.Expense.Date.String()
		report.DailyBreakdown[dayKey] = report.DailyBreakdown[dayKey].Add(amount)
	}
	return report
}

func (l *Ledger) CurrentWeeklyReport() WeeklyReport {
	return l.WeeklyReport(core.DateOf(l.now()))
}

// SpendingTrends returns one point per month for the given number of
// consecutive months ending at the current month, oldest first.
func (l *Ledger) SpendingTrends(months int) []TrendPoint {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	now := l.now()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	points := make([]TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		m := current.AddDate(0, -i, 0)
		r := l.MonthlyReport(m.Year(), m.Month())
		points = append(points, TrendPoint{
			Period:           fmt.Sprintf("%s %d", r.MonthName, r.Year),
			TotalSpent:       r.TotalSpent,
			TransactionCount: r.TransactionCount,
		})
	}
	return points
}
