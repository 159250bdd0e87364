package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// CalculateDueDate returns the due date of a loan starting at loanDate
func CalculateDueDate(loanDate time.Time, durationDays int) time.Time {
	return loanDate.AddDate(0, 0, durationDays)
}

// DaysLate returns the number of whole days elapsed since dueDate.
// Zero when now is not after dueDate.
func DaysLate(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}
	return int(now.Sub(dueDate) / day)
}

// CalculateLateFee computes daysLate * dailyRate, rounded to 2 decimal places
func CalculateLateFee(daysLate int, dailyRate decimal.Decimal) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(daysLate))).Round(2)
}

// IsDateOverdue checks if dueDate is strictly before now
func IsDateOverdue(dueDate, now time.Time) bool {
	return now.After(dueDate)
}
