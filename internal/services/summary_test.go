package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"caja/internal/core"
)

func TestDailySummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s := env.openSession(t, "Ana", 10000)
	env.record(t, s.ID, core.Income, 5000, "Venta")
	env.record(t, s.ID, core.Expense, 2000, "Compra")

	env.clock.Set(time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local))
	env.record(t, s.ID, core.Income, 700, "Venta temprana")

	day := core.NewDate(2024, 5, 1)
	got, err := env.summary.DailySummary(ctx, day)
	if err != nil {
		t.Fatalf("DailySummary() error = %v", err)
	}
	want := core.DailySummary{
		Date:           day,
		TotalIncome:    core.Cents(5000),
		TotalExpense:   core.Cents(2000),
		Balance:        core.Cents(3000),
		IncomeCount:    1,
		ExpenseCount:   1,
		CurrentBalance: core.Cents(13700),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DailySummary mismatch (-want +got):\n%s", diff)
	}
}

func TestDailySummary_NoActiveSession(t *testing.T) {
	env := newTestEnv(t)
	got, err := env.summary.DailySummary(context.Background(), core.NewDate(2024, 5, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !got.CurrentBalance.IsZero() || got.IncomeCount != 0 || got.ExpenseCount != 0 {
		t.Errorf("empty summary = %+v", got)
	}
}

func TestTodaySummaries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s := env.openSession(t, "Ana", 0)
	env.record(t, s.ID, core.Income, 1000, "Venta")
	env.record(t, s.ID, core.Income, 500, "Venta")
	env.record(t, s.ID, core.Expense, 200, "Compra")

	today, err := env.summary.TodaySummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if today.Date.String() != "2024-05-01" || today.Balance.Cents != 1300 || today.CurrentBalance.Cents != 1300 {
		t.Errorf("TodaySummary() = %+v", today)
	}

	tx, err := env.summary.TodayTransactionsSummary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := core.TransactionsSummary{
		Date:              core.NewDate(2024, 5, 1),
		TotalIncome:       core.Cents(1500),
		TotalExpense:      core.Cents(200),
		Balance:           core.Cents(1300),
		IncomeCount:       2,
		ExpenseCount:      1,
		TotalTransactions: 3,
	}
	if diff := cmp.Diff(want, tx); diff != "" {
		t.Errorf("TodayTransactionsSummary mismatch (-want +got):\n%s", diff)
	}
}
