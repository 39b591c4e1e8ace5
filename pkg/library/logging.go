package library

import "context"

// OperationLogger records domain-level events emitted by service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing circulation operation.
type OperationLog struct {
	Operation string
	ActorID   AccountID
	BookID    BookID
	Amount    Money
	Status    string
	Error     error
}

// CatalogOption configures a Catalog instance.
type CatalogOption func(*Catalog)

// DirectoryOption configures a Directory instance.
type DirectoryOption func(*Directory)

// LedgerOption configures a Ledger instance.
type LedgerOption func(*Ledger)

// WithCatalogOperationLogger wires a logger for catalog mutations.
func WithCatalogOperationLogger(logger OperationLogger) CatalogOption {
	return func(catalog *Catalog) {
		catalog.logger = logger
	}
}

// WithDirectoryOperationLogger wires a logger for directory mutations.
func WithDirectoryOperationLogger(logger OperationLogger) DirectoryOption {
	return func(directory *Directory) {
		directory.logger = logger
	}
}

// WithLedgerOperationLogger wires a logger for ledger transactions.
func WithLedgerOperationLogger(logger OperationLogger) LedgerOption {
	return func(ledger *Ledger) {
		ledger.logger = logger
	}
}

func logOperation(ctx context.Context, logger OperationLogger, entry OperationLog) {
	if logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	logger.LogOperation(ctx, entry)
}
