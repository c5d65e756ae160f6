package core

// SessionSummary aggregates one session's transactions.
type SessionSummary struct {
	Session         Session `json:"session"`
	TotalIncome     Money   `json:"total_income"`
	TotalExpense    Money   `json:"total_expense"`
	IncomeCount     int64   `json:"income_count"`
	ExpenseCount    int64   `json:"expense_count"`
	CurrentBalance  Money   `json:"current_balance"`
	ExpectedClosing Money   `json:"expected_closing"`
	Difference      Money   `json:"difference"`
}

// NewSessionSummary derives balances from the session and its per-type totals.
func NewSessionSummary(s Session, income, expense Money, incomeCount, expenseCount int64) SessionSummary {
	balance := s.OpeningAmount.Add(income).Sub(expense)
	sum := SessionSummary{
		Session:         s,
		TotalIncome:     income,
		TotalExpense:    expense,
		IncomeCount:     incomeCount,
		ExpenseCount:    expenseCount,
		CurrentBalance:  balance,
		ExpectedClosing: balance,
	}
	if s.ClosingAmount != nil {
		sum.ExpectedClosing = *s.ClosingAmount
		sum.Difference = s.ClosingAmount.Sub(balance)
	}
	return sum
}

// DailySummary covers the transactions of one calendar date.
//
// CurrentBalance is the balance of whichever session is active when the
// summary is computed, regardless of Date.
type DailySummary struct {
	Date           Date  `json:"date"`
	TotalIncome    Money `json:"total_income"`
	TotalExpense   Money `json:"total_expense"`
	Balance        Money `json:"balance"`
	IncomeCount    int64 `json:"income_count"`
	ExpenseCount   int64 `json:"expense_count"`
	CurrentBalance Money `json:"current_balance"`
}

// TransactionsSummary is the per-date aggregation without the session balance.
type TransactionsSummary struct {
	Date              Date  `json:"date"`
	TotalIncome       Money `json:"total_income"`
	TotalExpense      Money `json:"total_expense"`
	Balance           Money `json:"balance"`
	IncomeCount       int64 `json:"income_count"`
	ExpenseCount      int64 `json:"expense_count"`
	TotalTransactions int64 `json:"total_transactions"`
}

// DayTotals is the raw per-type aggregation for one date.
type DayTotals struct {
	Income       Money
	Expense      Money
	IncomeCount  int64
	ExpenseCount int64
}

func (t DayTotals) Daily(date Date, currentBalance Money) DailySummary {
	return DailySummary{
		Date:           date,
		TotalIncome:    t.Income,
		TotalExpense:   t.Expense,
		Balance:        t.Income.Sub(t.Expense),
		IncomeCount:    t.IncomeCount,
		ExpenseCount:   t.ExpenseCount,
		CurrentBalance: currentBalance,
	}
}

func (t DayTotals) Transactions(date Date) TransactionsSummary {
	return TransactionsSummary{
		Date:              date,
		TotalIncome:       t.Income,
		TotalExpense:      t.Expense,
		Balance:           t.Income.Sub(t.Expense),
		IncomeCount:       t.IncomeCount,
		ExpenseCount:      t.ExpenseCount,
		TotalTransactions: t.IncomeCount + t.ExpenseCount,
	}
}
