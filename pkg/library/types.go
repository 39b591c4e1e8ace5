package library

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money is an integer currency amount in cents.
type Money int64

// BookID identifies a catalog entry (ISBN in the legacy data).
type BookID struct {
	value string
}

// AccountID identifies a directory account (email in the legacy data).
type AccountID struct {
	value string
}

// Role partitions accounts into administrators and borrowers.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleBorrower Role = "BORROWER"
)

// FineCause enumerates why a fine was issued.
type FineCause string

const (
	FineOverdue  FineCause = "OVERDUE"
	FineLostBook FineCause = "LOST_BOOK"
	FineLostCard FineCause = "LOST_CARD"
)

// LoanStatus defines the loan lifecycle. Open loans close as returned or lost;
// both closed states are terminal.
type LoanStatus string

const (
	LoanOpen     LoanStatus = "open"
	LoanReturned LoanStatus = "returned"
	LoanLost     LoanStatus = "lost"
)

// Book is a catalog entry with its current availability.
type Book struct {
	ID              BookID
	Title           string
	Author          string
	AvailableCopies int
	UnitCost        Money
}

// Account is a directory entry. SecretHash holds a bcrypt hash, never the
// plaintext secret.
type Account struct {
	ID             AccountID
	DisplayName    string
	SecretHash     string
	Role           Role
	DepositBalance Money
	WalletBalance  Money
	FineCeiling    Money
}

// Loan records one copy of one book lent to one borrower. ReturnedOn is nil
// while the loan is open.
type Loan struct {
	LoanID         string
	BorrowerID     AccountID
	BookID         BookID
	BorrowedOn     Date
	DueOn          Date
	ReturnedOn     *Date
	ExtensionCount int
	Status         LoanStatus
}

// Fine is a monetary penalty record. Only the Settled flag ever changes after
// creation.
type Fine struct {
	FineID   string
	OwnerID  AccountID
	BookID   BookID
	Amount   Money
	Cause    FineCause
	IssuedOn Date
	Settled  bool
}

// NewBookID validates and normalizes a book id.
func NewBookID(raw string) (BookID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return BookID{}, fmt.Errorf("%w: empty value", ErrInvalidBookID)
	}
	return BookID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookID) String() string {
	return id.value
}

// IsCardSentinel reports whether the id is the lost-card fine sentinel.
func (id BookID) IsCardSentinel() bool {
	return id.value == cardFineBookKey
}

// CardFineBookID returns the sentinel book id used on lost-card fines.
func CardFineBookID() BookID {
	return BookID{value: cardFineBookKey}
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// ParseRole maps a stored role value onto a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleBorrower:
		return RoleBorrower, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// String returns the stored role value.
func (role Role) String() string {
	return string(role)
}

// ParseFineCause maps a stored cause value onto a FineCause.
func ParseFineCause(raw string) (FineCause, error) {
	switch FineCause(strings.ToUpper(strings.TrimSpace(raw))) {
	case FineOverdue:
		return FineOverdue, nil
	case FineLostBook:
		return FineLostBook, nil
	case FineLostCard:
		return FineLostCard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFineCause, raw)
}

// String returns the stored cause value.
func (cause FineCause) String() string {
	return string(cause)
}

// ParseLoanStatus maps a stored status value onto a LoanStatus.
func ParseLoanStatus(raw string) (LoanStatus, error) {
	switch LoanStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case LoanOpen:
		return LoanOpen, nil
	case LoanReturned:
		return LoanReturned, nil
	case LoanLost:
		return LoanLost, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLoanStatus, raw)
}

// String returns the stored status value.
func (status LoanStatus) String() string {
	return string(status)
}

// Open reports whether the loan has not yet been closed.
func (loan Loan) Open() bool {
	return loan.ReturnedOn == nil
}

// DefaultFineCeiling returns the ceiling applied to accounts created without
// an explicit one.
func DefaultFineCeiling() Money {
	return defaultFineCeilingCents
}

// NewMoney validates a non-negative amount in cents.
func NewMoney(raw int64) (Money, error) {
	if raw < 0 {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	return Money(raw), nil
}

// NewPositiveMoney validates a strictly positive amount in cents.
func NewPositiveMoney(raw int64) (Money, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Money(raw), nil
}

// ParseMoney reads a decimal currency string ("1500" or "1500.50") into cents.
func ParseMoney(raw string) (Money, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "-") {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidAmount)
	}
	whole, fraction, _ := strings.Cut(trimmed, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	cents := units * 100
	if fraction != "" {
		if len(fraction) > 2 {
			fraction = fraction[:2]
		}
		for len(fraction) < 2 {
			fraction += "0"
		}
		part, err := strconv.ParseInt(fraction, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		cents += part
	}
	// Negative here can only mean the whole part overflowed int64 cents.
	if cents < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return Money(cents), nil
}

// Int64 returns the raw cents value.
func (amount Money) Int64() int64 {
	return int64(amount)
}

// Decimal renders the amount as a plain decimal string ("15.00").
func (amount Money) Decimal() string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// Percent returns the given whole percentage of the amount, truncated to cents.
func (amount Money) Percent(percent int64) Money {
	return Money(int64(amount) * percent / 100)
}

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

// Date is a calendar date at day granularity, held at UTC midnight.
type Date struct {
	value time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(instant time.Time) Date {
	utc := instant.UTC()
	return NewDate(utc.Year(), utc.Month(), utc.Day())
}

// ParseDate reads an ISO calendar date ("2006-01-02").
func ParseDate(raw string) (Date, error) {
	parsed, err := time.Parse(isoDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return DateOf(parsed), nil
}

// AddDays returns the date the given number of days later.
func (date Date) AddDays(days int) Date {
	return Date{value: date.value.AddDate(0, 0, days)}
}

// DaysSince returns the whole number of days from other to date.
func (date Date) DaysSince(other Date) int {
	return int(date.value.Sub(other.value) / (24 * time.Hour))
}

// Before reports whether date falls before other.
func (date Date) Before(other Date) bool {
	return date.value.Before(other.value)
}

// After reports whether date falls after other.
func (date Date) After(other Date) bool {
	return date.value.After(other.value)
}

// Equal reports whether both values name the same calendar date.
func (date Date) Equal(other Date) bool {
	return date.value.Equal(other.value)
}

// IsZero reports whether the date is unset.
func (date Date) IsZero() bool {
	return date.value.IsZero()
}

// Time returns the date as a UTC midnight instant.
func (date Date) Time() time.Time {
	return date.value
}

// ISO renders the date for storage.
func (date Date) ISO() string {
	return date.value.Format(isoDateLayout)
}

// Display renders the date for human-facing output (DD/MM/YYYY).
func (date Date) Display() string {
	return date.value.Format(displayDateLayout)
}
