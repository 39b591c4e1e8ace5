package library

// OverdueFine computes the penalty for a late return. Accrual is linear per
// day, doubles for every full ten-day block the book is held past due, and is
// capped at 80% of the book's replacement cost. daysOverdue must be positive;
// the return path never calls this for on-time returns.
func OverdueFine(daysOverdue int, unitCost Money) Money {
	ceiling := unitCost.Percent(overdueFineCapPercent)
	fine := overdueFinePerDayCents * Money(daysOverdue)
	periods := daysOverdue / overdueDoublingPeriodDays
	for block := 0; block < periods; block++ {
		// Clamp before doubling can overflow on loans overdue by years.
		if fine >= ceiling {
			return ceiling
		}
		fine *= 2
	}
	if fine > ceiling {
		return ceiling
	}
	return fine
}

// LostBookFine is half the replacement cost of the lost copy.
func LostBookFine(unitCost Money) Money {
	return unitCost.Percent(lostBookFinePercent)
}
