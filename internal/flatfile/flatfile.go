// Package flatfile reads and writes the pipe-delimited record files used by
// the legacy circulation system. Field order is fixed per record kind; a
// malformed line fails only that record and loading continues.
package flatfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const (
	fieldDelimiter   = "|"
	nullDateSentinel = "null"

	accountFieldsMin = 5
	accountFieldsMax = 6
	bookFields       = 5
	loanFieldsMin    = 6
	loanFieldsMax    = 7
	fineFields       = 6
)

// RecordError reports a single unparseable line.
type RecordError struct {
	Line int
	Err  error
}

// Error returns the formatted record error.
func (recordError RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", recordError.Line, recordError.Err)
}

// Unwrap returns the underlying parse error.
func (recordError RecordError) Unwrap() error {
	return recordError.Err
}

// ReadAccounts parses account records. Field order: id, displayName, secret,
// role, depositBalance, walletBalance (optional, defaults to 0). The secret
// field is carried into SecretHash untouched; hashing legacy plaintext
// secrets is the importer's responsibility.
func ReadAccounts(reader io.Reader) ([]library.Account, []RecordError, error) {
	var accounts []library.Account
	recordErrors, err := scanRecords(reader, func(fields []string) error {
		if len(fields) < accountFieldsMin || len(fields) > accountFieldsMax {
			return fmt.Errorf("expected %d or %d fields, got %d", accountFieldsMin, accountFieldsMax, len(fields))
		}
		accountID, err := library.NewAccountID(fields[0])
		if err != nil {
			return err
		}
		role, err := library.ParseRole(fields[3])
		if err != nil {
			return err
		}
		deposit, err := library.ParseMoney(fields[4])
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		wallet := library.Money(0)
		if len(fields) == accountFieldsMax {
			wallet, err = library.ParseMoney(fields[5])
			if err != nil {
				return fmt.Errorf("wallet: %w", err)
			}
		}
		accounts = append(accounts, library.Account{
			ID:             accountID,
			DisplayName:    fields[1],
			SecretHash:     fields[2],
			Role:           role,
			DepositBalance: deposit,
			WalletBalance:  wallet,
			FineCeiling:    library.DefaultFineCeiling(),
		})
		return nil
	})
	return accounts, recordErrors, err
}

// WriteAccounts renders account records with every optional field present.
func WriteAccounts(writer io.Writer, accounts []library.Account) error {
	for _, account := range accounts {
		err := writeRecord(writer,
			account.ID.String(),
			account.DisplayName,
			account.SecretHash,
			account.Role.String(),
			account.DepositBalance.Decimal(),
			account.WalletBalance.Decimal(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadBooks parses book records. Field order: id, title, author,
// availableCopies, unitCost.
func ReadBooks(reader io.Reader) ([]library.Book, []RecordError, error) {
	var books []library.Book
	recordErrors, err := scanRecords(reader, func(fields []string) error {
		if len(fields) != bookFields {
			return fmt.Errorf("expected %d fields, got %d", bookFields, len(fields))
		}
		bookID, err := library.NewBookID(fields[0])
		if err != nil {
			return err
		}
		copies, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil || copies < 0 {
			return fmt.Errorf("available copies: %q", fields[3])
		}
		unitCost, err := library.ParseMoney(fields[4])
		if err != nil {
			return fmt.Errorf("unit cost: %w", err)
		}
		books = append(books, library.Book{
			ID:              bookID,
			Title:           fields[1],
			Author:          fields[2],
			AvailableCopies: copies,
			UnitCost:        unitCost,
		})
		return nil
	})
	return books, recordErrors, err
}

// WriteBooks renders book records.
func WriteBooks(writer io.Writer, books []library.Book) error {
	for _, book := range books {
		err := writeRecord(writer,
			book.ID.String(),
			book.Title,
			book.Author,
			strconv.Itoa(book.AvailableCopies),
			book.UnitCost.Decimal(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadLoans parses loan records. Field order: borrowerId, bookId, borrowedOn,
// dueOn, returnedOn ("null" while open), extensionCount, status (optional;
// derived from returnedOn when absent). Dates are ISO (YYYY-MM-DD).
func ReadLoans(reader io.Reader) ([]library.Loan, []RecordError, error) {
	var loans []library.Loan
	recordErrors, err := scanRecords(reader, func(fields []string) error {
		if len(fields) < loanFieldsMin || len(fields) > loanFieldsMax {
			return fmt.Errorf("expected %d or %d fields, got %d", loanFieldsMin, loanFieldsMax, len(fields))
		}
		borrowerID, err := library.NewAccountID(fields[0])
		if err != nil {
			return err
		}
		bookID, err := library.NewBookID(fields[1])
		if err != nil {
			return err
		}
		borrowedOn, err := library.ParseDate(fields[2])
		if err != nil {
			return fmt.Errorf("borrowed on: %w", err)
		}
		dueOn, err := library.ParseDate(fields[3])
		if err != nil {
			return fmt.Errorf("due on: %w", err)
		}
		var returnedOn *library.Date
		if strings.TrimSpace(fields[4]) != nullDateSentinel {
			value, err := library.ParseDate(fields[4])
			if err != nil {
				return fmt.Errorf("returned on: %w", err)
			}
			returnedOn = &value
		}
		extensions, err := strconv.Atoi(strings.TrimSpace(fields[5]))
		if err != nil || extensions < 0 {
			return fmt.Errorf("extension count: %q", fields[5])
		}
		status := library.LoanOpen
		if returnedOn != nil {
			status = library.LoanReturned
		}
		if len(fields) == loanFieldsMax {
			status, err = library.ParseLoanStatus(fields[6])
			if err != nil {
				return err
			}
		}
		loans = append(loans, library.Loan{
			BorrowerID:     borrowerID,
			BookID:         bookID,
			BorrowedOn:     borrowedOn,
			DueOn:          dueOn,
			ReturnedOn:     returnedOn,
			ExtensionCount: extensions,
			Status:         status,
		})
		return nil
	})
	return loans, recordErrors, err
}

// WriteLoans renders loan records with the status field present.
func WriteLoans(writer io.Writer, loans []library.Loan) error {
	for _, loan := range loans {
		returnedOn := nullDateSentinel
		if loan.ReturnedOn != nil {
			returnedOn = loan.ReturnedOn.ISO()
		}
		err := writeRecord(writer,
			loan.BorrowerID.String(),
			loan.BookID.String(),
			loan.BorrowedOn.ISO(),
			loan.DueOn.ISO(),
			returnedOn,
			strconv.Itoa(loan.ExtensionCount),
			loan.Status.String(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadFines parses fine records. Field order: ownerId, bookId (or "CARD"),
// amount, cause, issuedOn, settled.
func ReadFines(reader io.Reader) ([]library.Fine, []RecordError, error) {
	var fines []library.Fine
	recordErrors, err := scanRecords(reader, func(fields []string) error {
		if len(fields) != fineFields {
			return fmt.Errorf("expected %d fields, got %d", fineFields, len(fields))
		}
		ownerID, err := library.NewAccountID(fields[0])
		if err != nil {
			return err
		}
		bookID, err := library.NewBookID(fields[1])
		if err != nil {
			return err
		}
		amount, err := library.ParseMoney(fields[2])
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		cause, err := library.ParseFineCause(fields[3])
		if err != nil {
			return err
		}
		issuedOn, err := library.ParseDate(fields[4])
		if err != nil {
			return fmt.Errorf("issued on: %w", err)
		}
		settled, err := strconv.ParseBool(strings.TrimSpace(fields[5]))
		if err != nil {
			return fmt.Errorf("settled: %q", fields[5])
		}
		fines = append(fines, library.Fine{
			OwnerID:  ownerID,
			BookID:   bookID,
			Amount:   amount,
			Cause:    cause,
			IssuedOn: issuedOn,
			Settled:  settled,
		})
		return nil
	})
	return fines, recordErrors, err
}

// WriteFines renders fine records.
func WriteFines(writer io.Writer, fines []library.Fine) error {
	for _, fine := range fines {
		err := writeRecord(writer,
			fine.OwnerID.String(),
			fine.BookID.String(),
			fine.Amount.Decimal(),
			fine.Cause.String(),
			fine.IssuedOn.ISO(),
			strconv.FormatBool(fine.Settled),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanRecords(reader io.Reader, parse func(fields []string) error) ([]RecordError, error) {
	scanner := bufio.NewScanner(reader)
	var recordErrors []RecordError
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if err := parse(strings.Split(text, fieldDelimiter)); err != nil {
			recordErrors = append(recordErrors, RecordError{Line: line, Err: err})
		}
	}
	if err := scanner.Err(); err != nil {
		return recordErrors, fmt.Errorf("scan records: %w", err)
	}
	return recordErrors, nil
}

func writeRecord(writer io.Writer, fields ...string) error {
	if _, err := fmt.Fprintln(writer, strings.Join(fields, fieldDelimiter)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
