package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/internal/audit"
	"github.com/PaperTrailLabs/circulation/internal/flatfile"
	"github.com/PaperTrailLabs/circulation/internal/httpserver"
	"github.com/PaperTrailLabs/circulation/internal/store/gormstore"
	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const (
	flagDatabaseURL      = "database-url"
	flagListenAddr       = "listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagSessionKey       = "session-key"
	flagAdminID          = "admin-id"
	flagAdminSecret      = "admin-secret"
	flagAccountsFile     = "accounts"
	flagBooksFile        = "books"
	flagLoansFile        = "loans"
	flagFinesFile        = "fines"
	configKeyDatabaseURL = "database_url"
	configKeyListenAddr  = "listen_addr"
	configKeyOrigins     = "allowed_origins"
	configKeySessionKey  = "session_key"
	configKeyAdminID     = "admin_id"
	configKeyAdminSecret = "admin_secret"
	defaultDatabaseURL   = "sqlite:///tmp/circulation.db"
	defaultListenAddr    = ":8080"
	defaultAdminID       = "admin@library.local"
	bcryptHashPrefix     = "$2"
)

type runtimeConfig struct {
	DatabaseURL    string
	ListenAddr     string
	AllowedOrigins string
	SessionKey     string
	AdminID        string
	AdminSecret    string
}

type dataFiles struct {
	Accounts string
	Books    string
	Loans    string
	Fines    string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "circd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	files := &dataFiles{}

	root := &cobra.Command{
		Use:           "circd",
		Short:         "Library circulation server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "database connection string (postgres:// or sqlite path)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, cfg)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the circulation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}
	serve.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	serve.Flags().String(flagAllowedOrigins, "", "comma-delimited CORS origins")
	serve.Flags().String(flagSessionKey, "", "JWT session signing key")
	serve.Flags().String(flagAdminID, defaultAdminID, "bootstrap administrator id")
	serve.Flags().String(flagAdminSecret, "", "bootstrap administrator secret")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import legacy pipe-delimited record files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cfg, files)
		},
	}
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export records to pipe-delimited files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cfg, files)
		},
	}
	for _, cmd := range []*cobra.Command{importCmd, exportCmd} {
		cmd.Flags().StringVar(&files.Accounts, flagAccountsFile, "", "accounts record file")
		cmd.Flags().StringVar(&files.Books, flagBooksFile, "", "books record file")
		cmd.Flags().StringVar(&files.Loans, flagLoansFile, "", "loans record file")
		cmd.Flags().StringVar(&files.Fines, flagFinesFile, "", "fines record file")
	}

	root.AddCommand(serve, importCmd, exportCmd)
	return root
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.SetEnvPrefix("CIRCD")
	viper.AutomaticEnv()

	bindings := map[string]string{
		configKeyDatabaseURL: flagDatabaseURL,
		configKeyListenAddr:  flagListenAddr,
		configKeyOrigins:     flagAllowedOrigins,
		configKeySessionKey:  flagSessionKey,
		configKeyAdminID:     flagAdminID,
		configKeyAdminSecret: flagAdminSecret,
	}
	for key, flag := range bindings {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
		lookup := cmd.Flags().Lookup(flag)
		if lookup == nil {
			lookup = cmd.Root().PersistentFlags().Lookup(flag)
		}
		if lookup != nil {
			if err := viper.BindPFlag(key, lookup); err != nil {
				return err
			}
		}
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.AllowedOrigins = viper.GetString(configKeyOrigins)
	cfg.SessionKey = viper.GetString(configKeySessionKey)
	cfg.AdminID = viper.GetString(configKeyAdminID)
	cfg.AdminSecret = viper.GetString(configKeyAdminSecret)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.AdminID == "" {
		cfg.AdminID = defaultAdminID
	}
	return nil
}

type services struct {
	catalog   *library.Catalog
	directory *library.Directory
	ledger    *library.Ledger
	reports   *library.Reports
}

func buildServices(db *gorm.DB, logger *zap.Logger) (*services, error) {
	operationLog := audit.NewLogger(db, logger)
	catalog, err := library.NewCatalog(gormstore.NewCatalog(db), library.WithCatalogOperationLogger(operationLog))
	if err != nil {
		return nil, fmt.Errorf("catalog init: %w", err)
	}
	directory, err := library.NewDirectory(gormstore.NewDirectory(db), library.WithDirectoryOperationLogger(operationLog))
	if err != nil {
		return nil, fmt.Errorf("directory init: %w", err)
	}
	clock := func() library.Date { return library.DateOf(time.Now()) }
	ledger, err := library.NewLedger(gormstore.NewLedger(db), catalog, directory, clock, library.WithLedgerOperationLogger(operationLog))
	if err != nil {
		return nil, fmt.Errorf("ledger init: %w", err)
	}
	catalog.BindLoanActivity(ledger)
	directory.BindPromotionGate(ledger)
	reports, err := library.NewReports(catalog, directory, ledger)
	if err != nil {
		return nil, fmt.Errorf("reports init: %w", err)
	}
	return &services{catalog: catalog, directory: directory, ledger: ledger, reports: reports}, nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	stack, err := buildServices(gormDB, logger)
	if err != nil {
		return err
	}
	if err := bootstrapAdmin(ctx, stack.directory, cfg, logger); err != nil {
		return err
	}

	server, err := httpserver.NewServer(httpserver.Config{
		ListenAddr:        cfg.ListenAddr,
		AllowedOrigins:    httpserver.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.SessionKey,
	}, httpserver.Services{
		Catalog:   stack.catalog,
		Directory: stack.directory,
		Ledger:    stack.ledger,
		Reports:   stack.reports,
	}, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// bootstrapAdmin registers the default administrator on first run so the API
// is reachable before any account exists.
func bootstrapAdmin(ctx context.Context, directory *library.Directory, cfg *runtimeConfig, logger *zap.Logger) error {
	empty, err := directory.Empty(ctx)
	if err != nil {
		return fmt.Errorf("directory probe: %w", err)
	}
	if !empty {
		return nil
	}
	if cfg.AdminSecret == "" {
		return fmt.Errorf("admin secret is required to bootstrap an empty directory")
	}
	adminID, err := library.NewAccountID(cfg.AdminID)
	if err != nil {
		return fmt.Errorf("admin id: %w", err)
	}
	if _, err := directory.Register(ctx, adminID, "Administrator", cfg.AdminSecret, library.RoleAdmin); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	logger.Info("bootstrapped default administrator", zap.String("admin_id", cfg.AdminID))
	return nil
}

func runImport(ctx context.Context, cfg *runtimeConfig, files *dataFiles) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, driver, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()
	if err := prepareSchema(gormDB, driver); err != nil {
		return err
	}

	if files.Accounts != "" {
		if err := importAccounts(ctx, gormDB, files.Accounts, logger); err != nil {
			return err
		}
	}
	if files.Books != "" {
		if err := importBooks(ctx, gormDB, files.Books, logger); err != nil {
			return err
		}
	}
	if files.Loans != "" {
		if err := importLoans(ctx, gormDB, files.Loans, logger); err != nil {
			return err
		}
	}
	if files.Fines != "" {
		if err := importFines(ctx, gormDB, files.Fines, logger); err != nil {
			return err
		}
	}
	return nil
}

func importAccounts(ctx context.Context, db *gorm.DB, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open accounts file: %w", err)
	}
	defer file.Close()

	accounts, recordErrors, err := flatfile.ReadAccounts(file)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}
	logRecordErrors(logger, path, recordErrors)

	store := gormstore.NewDirectory(db)
	for _, account := range accounts {
		// Legacy files carry plaintext secrets; hash anything that is not
		// already a bcrypt digest.
		if !strings.HasPrefix(account.SecretHash, bcryptHashPrefix) {
			hash, err := bcrypt.GenerateFromPassword([]byte(account.SecretHash), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash secret for %s: %w", account.ID, err)
			}
			account.SecretHash = string(hash)
		}
		if err := store.InsertAccount(ctx, account); err != nil {
			return fmt.Errorf("insert account %s: %w", account.ID, err)
		}
	}
	logger.Info("imported accounts", zap.Int("count", len(accounts)), zap.String("file", path))
	return nil
}

func importBooks(ctx context.Context, db *gorm.DB, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open books file: %w", err)
	}
	defer file.Close()

	books, recordErrors, err := flatfile.ReadBooks(file)
	if err != nil {
		return fmt.Errorf("read books: %w", err)
	}
	logRecordErrors(logger, path, recordErrors)

	store := gormstore.NewCatalog(db)
	for _, book := range books {
		if err := store.InsertBook(ctx, book); err != nil {
			return fmt.Errorf("insert book %s: %w", book.ID, err)
		}
	}
	logger.Info("imported books", zap.Int("count", len(books)), zap.String("file", path))
	return nil
}

func importLoans(ctx context.Context, db *gorm.DB, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open loans file: %w", err)
	}
	defer file.Close()

	loans, recordErrors, err := flatfile.ReadLoans(file)
	if err != nil {
		return fmt.Errorf("read loans: %w", err)
	}
	logRecordErrors(logger, path, recordErrors)

	store := gormstore.NewLedger(db)
	for _, loan := range loans {
		if err := store.InsertLoan(ctx, loan); err != nil {
			return fmt.Errorf("insert loan %s/%s: %w", loan.BorrowerID, loan.BookID, err)
		}
	}
	logger.Info("imported loans", zap.Int("count", len(loans)), zap.String("file", path))
	return nil
}

func importFines(ctx context.Context, db *gorm.DB, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fines file: %w", err)
	}
	defer file.Close()

	fines, recordErrors, err := flatfile.ReadFines(file)
	if err != nil {
		return fmt.Errorf("read fines: %w", err)
	}
	logRecordErrors(logger, path, recordErrors)

	store := gormstore.NewLedger(db)
	for _, fine := range fines {
		if err := store.InsertFine(ctx, fine); err != nil {
			return fmt.Errorf("insert fine %s/%s: %w", fine.OwnerID, fine.BookID, err)
		}
	}
	logger.Info("imported fines", zap.Int("count", len(fines)), zap.String("file", path))
	return nil
}

func runExport(ctx context.Context, cfg *runtimeConfig, files *dataFiles) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, _, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer cleanup()

	directoryStore := gormstore.NewDirectory(gormDB)
	accounts, err := directoryStore.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	if files.Accounts != "" {
		if err := writeFile(files.Accounts, func(file *os.File) error {
			return flatfile.WriteAccounts(file, accounts)
		}); err != nil {
			return err
		}
		logger.Info("exported accounts", zap.Int("count", len(accounts)), zap.String("file", files.Accounts))
	}
	if files.Books != "" {
		books, err := gormstore.NewCatalog(gormDB).ListBooks(ctx)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		if err := writeFile(files.Books, func(file *os.File) error {
			return flatfile.WriteBooks(file, books)
		}); err != nil {
			return err
		}
		logger.Info("exported books", zap.Int("count", len(books)), zap.String("file", files.Books))
	}
	if files.Loans != "" {
		ledgerStore := gormstore.NewLedger(gormDB)
		var loans []library.Loan
		for _, account := range accounts {
			accountLoans, err := ledgerStore.ListLoansByBorrower(ctx, account.ID)
			if err != nil {
				return fmt.Errorf("list loans for %s: %w", account.ID, err)
			}
			loans = append(loans, accountLoans...)
		}
		if err := writeFile(files.Loans, func(file *os.File) error {
			return flatfile.WriteLoans(file, loans)
		}); err != nil {
			return err
		}
		logger.Info("exported loans", zap.Int("count", len(loans)), zap.String("file", files.Loans))
	}
	if files.Fines != "" {
		fines, err := gormstore.NewLedger(gormDB).ListAllFines(ctx)
		if err != nil {
			return fmt.Errorf("list fines: %w", err)
		}
		if err := writeFile(files.Fines, func(file *os.File) error {
			return flatfile.WriteFines(file, fines)
		}); err != nil {
			return err
		}
		logger.Info("exported fines", zap.Int("count", len(fines)), zap.String("file", files.Fines))
	}
	return nil
}

func writeFile(path string, write func(file *os.File) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func logRecordErrors(logger *zap.Logger, path string, recordErrors []flatfile.RecordError) {
	for _, recordError := range recordErrors {
		logger.Warn("skipped malformed record",
			zap.String("file", path),
			zap.Int("line", recordError.Line),
			zap.Error(recordError.Err),
		)
	}
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, string, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, "", err
	}

	var db *gorm.DB
	cfg := &gorm.Config{}
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, driver, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "circulation.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}

func prepareSchema(db *gorm.DB, driver string) error {
	if driver != "sqlite" {
		return nil
	}
	models := append(gormstore.Models(), &audit.Row{})
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
