// Package httpserver exposes the circulation services over a JSON HTTP API
// with cookie-based JWT sessions.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

// Services bundles the domain services the façade calls into.
type Services struct {
	Catalog   *library.Catalog
	Directory *library.Directory
	Ledger    *library.Ledger
	Reports   *library.Reports
}

// Server is the HTTP façade over the circulation services.
type Server struct {
	cfg      Config
	logger   *zap.Logger
	services Services
}

// NewServer validates the configuration and wires a Server.
func NewServer(cfg Config, services Services, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("http config: %w", err)
	}
	if services.Catalog == nil || services.Directory == nil || services.Ledger == nil || services.Reports == nil {
		return nil, fmt.Errorf("http server requires catalog, directory, ledger and reports")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, logger: logger, services: services}, nil
}

// Router builds the gin engine with all routes attached.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	auth.POST("/register", server.handleRegister)
	auth.POST("/login", server.handleLogin)

	api := router.Group("/api")
	api.Use(server.requireSession())

	api.GET("/session", server.handleSession)

	api.GET("/books", server.handleListBooks)
	api.GET("/books/:id", server.handleGetBook)
	api.GET("/books/:id/status", server.handleBookStatus)

	api.POST("/loans", server.handleBorrow)
	api.POST("/loans/return", server.handleReturn)
	api.POST("/loans/extend", server.handleExtend)
	api.POST("/loans/lost", server.handleReportLost)
	api.GET("/loans", server.handleOpenLoans)
	api.GET("/loans/history", server.handleLoanHistory)

	api.POST("/card/lost", server.handleReportLostCard)

	api.GET("/fines", server.handleFineHistory)
	api.GET("/fines/unsettled", server.handleUnsettledFines)
	api.POST("/fines/settle/cash", server.handleSettleAllCash)
	api.POST("/fines/settle/wallet", server.handleSettleAllWallet)
	api.POST("/fines/settle/one", server.handleSettleOne)

	api.GET("/wallet", server.handleWallet)
	api.POST("/wallet/topup", server.handleWalletTopup)

	admin := api.Group("")
	admin.Use(server.requireAdmin())

	admin.POST("/books", server.handleAddBook)
	admin.PATCH("/books/:id", server.handleModifyBook)
	admin.DELETE("/books/:id", server.handleRemoveBook)

	admin.GET("/accounts", server.handleListAccounts)
	admin.POST("/accounts/:id/promote", server.handlePromote)
	admin.DELETE("/accounts/:id", server.handleRemoveAccount)

	admin.GET("/reports/most-borrowed", server.handleMostBorrowed)
	admin.GET("/reports/never-borrowed", server.handleNeverBorrowed)
	admin.GET("/reports/outstanding", server.handleOutstanding)
	admin.GET("/reports/all-fines", server.handleAllFines)
	admin.GET("/reports/unpaid-fines", server.handleUnpaidFines)

	return router
}

// Run serves the API until the context is cancelled.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http server listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// respondDomainError maps domain sentinels onto HTTP statuses and stable codes.
func (server *Server) respondDomainError(ctx *gin.Context, err error) {
	status, code := classifyDomainError(err)
	if status == http.StatusInternalServerError {
		server.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, errorResponse(code, "internal error"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func classifyDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, library.ErrBookNotFound):
		return http.StatusNotFound, "book_not_found"
	case errors.Is(err, library.ErrAccountNotFound):
		return http.StatusNotFound, "account_not_found"
	case errors.Is(err, library.ErrNoOpenLoan):
		return http.StatusNotFound, "no_open_loan"
	case errors.Is(err, library.ErrFineNotFound):
		return http.StatusNotFound, "fine_not_found"
	case errors.Is(err, library.ErrDuplicateBook):
		return http.StatusConflict, "duplicate_book"
	case errors.Is(err, library.ErrDuplicateAccount):
		return http.StatusConflict, "duplicate_account"
	case errors.Is(err, library.ErrAlreadyBorrowed):
		return http.StatusConflict, "already_borrowed"
	case errors.Is(err, library.ErrBookInUse):
		return http.StatusConflict, "book_in_use"
	case errors.Is(err, library.ErrMaxBooksReached):
		return http.StatusUnprocessableEntity, "max_books_reached"
	case errors.Is(err, library.ErrBookNotAvailable):
		return http.StatusUnprocessableEntity, "book_not_available"
	case errors.Is(err, library.ErrHasUnpaidFines):
		return http.StatusUnprocessableEntity, "has_unpaid_fines"
	case errors.Is(err, library.ErrExtensionLimitReached):
		return http.StatusUnprocessableEntity, "extension_limit_reached"
	case errors.Is(err, library.ErrNothingToSettle):
		return http.StatusUnprocessableEntity, "nothing_to_settle"
	case errors.Is(err, library.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, library.ErrNotEligible):
		return http.StatusUnprocessableEntity, "not_eligible"
	case errors.Is(err, library.ErrInvalidBookID),
		errors.Is(err, library.ErrInvalidAccountID),
		errors.Is(err, library.ErrInvalidRole),
		errors.Is(err, library.ErrInvalidFineCause),
		errors.Is(err, library.ErrInvalidLoanStatus),
		errors.Is(err, library.ErrInvalidAmount),
		errors.Is(err, library.ErrInvalidDate),
		errors.Is(err, library.ErrInvalidBook):
		return http.StatusBadRequest, "invalid_argument"
	}
	return http.StatusInternalServerError, "internal"
}
