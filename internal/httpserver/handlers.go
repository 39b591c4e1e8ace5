package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PaperTrailLabs/circulation/pkg/library"
)

type registerRequest struct {
	ID          string `json:"id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Secret      string `json:"secret" binding:"required"`
}

type loginRequest struct {
	ID     string `json:"id" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

type addBookRequest struct {
	ID              string `json:"id" binding:"required"`
	Title           string `json:"title" binding:"required"`
	Author          string `json:"author"`
	AvailableCopies int    `json:"available_copies"`
	UnitCostCents   int64  `json:"unit_cost_cents" binding:"required"`
}

type modifyBookRequest struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	AvailableCopies *int    `json:"available_copies"`
	UnitCostCents   *int64  `json:"unit_cost_cents"`
}

type loanRequest struct {
	BookID      string `json:"book_id" binding:"required"`
	IgnoreFines bool   `json:"ignore_fines"`
}

type returnRequest struct {
	BookID     string `json:"book_id" binding:"required"`
	ReturnedOn string `json:"returned_on"`
}

type settleOneRequest struct {
	BookID string `json:"book_id" binding:"required"`
	Cause  string `json:"cause" binding:"required"`
}

type topupRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required"`
}

type bookPayload struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	AvailableCopies int    `json:"available_copies"`
	UnitCostCents   int64  `json:"unit_cost_cents"`
}

type accountPayload struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	DepositCents int64  `json:"deposit_cents"`
	WalletCents  int64  `json:"wallet_cents"`
	CeilingCents int64  `json:"fine_ceiling_cents"`
}

type loanPayload struct {
	BookID         string `json:"book_id"`
	BorrowerID     string `json:"borrower_id"`
	BorrowedOn     string `json:"borrowed_on"`
	DueOn          string `json:"due_on"`
	ReturnedOn     string `json:"returned_on,omitempty"`
	ExtensionCount int    `json:"extension_count"`
	Status         string `json:"status"`
}

type finePayload struct {
	BookID      string `json:"book_id"`
	OwnerID     string `json:"owner_id"`
	AmountCents int64  `json:"amount_cents"`
	Cause       string `json:"cause"`
	IssuedOn    string `json:"issued_on"`
	Settled     bool   `json:"settled"`
}

func bookToPayload(book library.Book) bookPayload {
	return bookPayload{
		ID:              book.ID.String(),
		Title:           book.Title,
		Author:          book.Author,
		AvailableCopies: book.AvailableCopies,
		UnitCostCents:   book.UnitCost.Int64(),
	}
}

func accountToPayload(account library.Account) accountPayload {
	return accountPayload{
		ID:           account.ID.String(),
		DisplayName:  account.DisplayName,
		Role:         account.Role.String(),
		DepositCents: account.DepositBalance.Int64(),
		WalletCents:  account.WalletBalance.Int64(),
		CeilingCents: account.FineCeiling.Int64(),
	}
}

func loanToPayload(loan library.Loan) loanPayload {
	payload := loanPayload{
		BookID:         loan.BookID.String(),
		BorrowerID:     loan.BorrowerID.String(),
		BorrowedOn:     loan.BorrowedOn.ISO(),
		DueOn:          loan.DueOn.ISO(),
		ExtensionCount: loan.ExtensionCount,
		Status:         loan.Status.String(),
	}
	if loan.ReturnedOn != nil {
		payload.ReturnedOn = loan.ReturnedOn.ISO()
	}
	return payload
}

func fineToPayload(fine library.Fine) finePayload {
	return finePayload{
		BookID:      fine.BookID.String(),
		OwnerID:     fine.OwnerID.String(),
		AmountCents: fine.Amount.Int64(),
		Cause:       fine.Cause.String(),
		IssuedOn:    fine.IssuedOn.ISO(),
		Settled:     fine.Settled,
	}
}

func loansToPayload(loans []library.Loan) []loanPayload {
	payloads := make([]loanPayload, 0, len(loans))
	for _, loan := range loans {
		payloads = append(payloads, loanToPayload(loan))
	}
	return payloads
}

func finesToPayload(fines []library.Fine) []finePayload {
	payloads := make([]finePayload, 0, len(fines))
	for _, fine := range fines {
		payloads = append(payloads, fineToPayload(fine))
	}
	return payloads
}

func booksToPayload(books []library.Book) []bookPayload {
	payloads := make([]bookPayload, 0, len(books))
	for _, book := range books {
		payloads = append(payloads, bookToPayload(book))
	}
	return payloads
}

func (server *Server) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "id, display_name and secret are required"))
		return
	}
	accountID, err := library.NewAccountID(request.ID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	account, err := server.services.Directory.Register(ctx.Request.Context(), accountID, request.DisplayName, request.Secret, library.RoleBorrower)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.issueSessionCookie(ctx, account); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"account": accountToPayload(account)})
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "id and secret are required"))
		return
	}
	accountID, err := library.NewAccountID(request.ID)
	if err != nil {
		server.respondDomainError(ctx, library.ErrInvalidCredentials)
		return
	}
	account, err := server.services.Directory.Authenticate(ctx.Request.Context(), accountID, request.Secret)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.issueSessionCookie(ctx, account); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"account": accountToPayload(account)})
}

func (server *Server) handleSession(ctx *gin.Context) {
	claims := getClaims(ctx)
	if claims == nil {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"account_id":   claims.Subject,
		"display_name": claims.DisplayName,
		"role":         claims.Role,
		"expires":      claims.ExpiresAt.Unix(),
	})
}

func (server *Server) handleListBooks(ctx *gin.Context) {
	requestCtx := ctx.Request.Context()
	var (
		books []library.Book
		err   error
	)
	switch {
	case ctx.Query("q") != "":
		term := ctx.Query("q")
		if ctx.Query("by") == "author" {
			books, err = server.services.Catalog.SearchByAuthor(requestCtx, term)
		} else {
			books, err = server.services.Catalog.SearchByTitle(requestCtx, term)
		}
	case ctx.Query("max_copies") != "":
		threshold, parseErr := strconv.Atoi(ctx.Query("max_copies"))
		if parseErr != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_argument", "max_copies must be an integer"))
			return
		}
		books, err = server.services.Catalog.BelowThreshold(requestCtx, threshold)
	case ctx.Query("sort") == "availability":
		books, err = server.services.Catalog.SortedByAvailability(requestCtx)
	default:
		books, err = server.services.Catalog.SortedByTitle(requestCtx)
	}
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"books": booksToPayload(books)})
}

func (server *Server) handleGetBook(ctx *gin.Context) {
	book, ok := server.lookupBook(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"book": bookToPayload(book)})
}

func (server *Server) handleBookStatus(ctx *gin.Context) {
	bookID, err := library.NewBookID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	status, err := server.services.Reports.BookStatus(ctx.Request.Context(), bookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payload := gin.H{
		"book":     bookToPayload(status.Book),
		"borrowed": status.Borrowed,
	}
	if status.Borrowed {
		payload["holder"] = accountToPayload(status.Holder)
		payload["loan"] = loanToPayload(status.Loan)
		payload["expected_return"] = status.ExpectedReturn.Display()
	}
	ctx.JSON(http.StatusOK, payload)
}

func (server *Server) handleAddBook(ctx *gin.Context) {
	var request addBookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "id, title and unit_cost_cents are required"))
		return
	}
	bookID, err := library.NewBookID(request.ID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	book := library.Book{
		ID:              bookID,
		Title:           request.Title,
		Author:          request.Author,
		AvailableCopies: request.AvailableCopies,
		UnitCost:        library.Money(request.UnitCostCents),
	}
	if err := server.services.Catalog.Add(ctx.Request.Context(), book); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"book": bookToPayload(book)})
}

func (server *Server) handleModifyBook(ctx *gin.Context) {
	bookID, err := library.NewBookID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	var request modifyBookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	patch := library.BookPatch{
		Title:           request.Title,
		Author:          request.Author,
		AvailableCopies: request.AvailableCopies,
	}
	if request.UnitCostCents != nil {
		unitCost := library.Money(*request.UnitCostCents)
		patch.UnitCost = &unitCost
	}
	if err := server.services.Catalog.Modify(ctx.Request.Context(), bookID, patch); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	book, err := server.services.Catalog.Get(ctx.Request.Context(), bookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"book": bookToPayload(book)})
}

func (server *Server) handleRemoveBook(ctx *gin.Context) {
	bookID, err := library.NewBookID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.services.Catalog.Remove(ctx.Request.Context(), bookID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (server *Server) handleBorrow(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request loanRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id is required"))
		return
	}
	bookID, err := library.NewBookID(request.BookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	var loan library.Loan
	if request.IgnoreFines {
		loan, err = server.services.Ledger.BorrowIgnoringFines(ctx.Request.Context(), borrowerID, bookID)
	} else {
		loan, err = server.services.Ledger.Borrow(ctx.Request.Context(), borrowerID, bookID)
	}
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"loan": loanToPayload(loan)})
}

func (server *Server) handleReturn(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request returnRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id is required"))
		return
	}
	bookID, err := library.NewBookID(request.BookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	returnedOn := library.DateOf(time.Now())
	if request.ReturnedOn != "" {
		returnedOn, err = library.ParseDate(request.ReturnedOn)
		if err != nil {
			server.respondDomainError(ctx, err)
			return
		}
	}
	receipt, err := server.services.Ledger.ReturnLoan(ctx.Request.Context(), borrowerID, bookID, returnedOn)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payload := gin.H{
		"loan":        loanToPayload(receipt.Loan),
		"fine_issued": receipt.FineIssued,
	}
	if receipt.FineIssued {
		payload["fine_cents"] = receipt.FineAmount.Int64()
		payload["days_overdue"] = receipt.DaysOverdue
	}
	ctx.JSON(http.StatusOK, payload)
}

func (server *Server) handleExtend(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request loanRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id is required"))
		return
	}
	bookID, err := library.NewBookID(request.BookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	loan, err := server.services.Ledger.ExtendLoan(ctx.Request.Context(), borrowerID, bookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"loan": loanToPayload(loan)})
}

func (server *Server) handleReportLost(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request loanRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id is required"))
		return
	}
	bookID, err := library.NewBookID(request.BookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	fine, err := server.services.Ledger.ReportLost(ctx.Request.Context(), borrowerID, bookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"fine": fineToPayload(fine)})
}

func (server *Server) handleReportLostCard(ctx *gin.Context) {
	accountID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	fine, err := server.services.Ledger.ReportLostCard(ctx.Request.Context(), accountID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"fine": fineToPayload(fine)})
}

func (server *Server) handleOpenLoans(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	loans, err := server.services.Ledger.OpenLoans(ctx.Request.Context(), borrowerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"loans": loansToPayload(loans)})
}

func (server *Server) handleLoanHistory(ctx *gin.Context) {
	borrowerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	entries, err := server.services.Reports.BorrowerLoanHistory(ctx.Request.Context(), borrowerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payloads := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, gin.H{
			"loan":  loanToPayload(entry.Loan),
			"title": entry.Book.Title,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"history": payloads})
}

func (server *Server) handleFineHistory(ctx *gin.Context) {
	ownerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	report, err := server.services.Reports.BorrowerFineHistory(ctx.Request.Context(), ownerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"fines":           fineEntriesToPayload(report.Entries),
		"unsettled_cents": report.TotalUnsettled.Int64(),
		"wallet_cents":    report.WalletBalance.Int64(),
	})
}

func (server *Server) handleUnsettledFines(ctx *gin.Context) {
	ownerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	fines, err := server.services.Ledger.UnsettledFines(ctx.Request.Context(), ownerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	total, err := server.services.Ledger.TotalUnsettled(ctx.Request.Context(), ownerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"fines":       finesToPayload(fines),
		"total_cents": total.Int64(),
	})
}

func (server *Server) handleSettleAllCash(ctx *gin.Context) {
	ownerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	total, err := server.services.Ledger.SettleAllWithCash(ctx.Request.Context(), ownerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"settled_cents": total.Int64()})
}

func (server *Server) handleSettleAllWallet(ctx *gin.Context) {
	ownerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	total, err := server.services.Ledger.SettleAllWithWallet(ctx.Request.Context(), ownerID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"settled_cents": total.Int64()})
}

func (server *Server) handleSettleOne(ctx *gin.Context) {
	ownerID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request settleOneRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "book_id and cause are required"))
		return
	}
	bookID, err := library.NewBookID(request.BookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	cause, err := library.ParseFineCause(request.Cause)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.services.Ledger.SettleOneWithCash(ctx.Request.Context(), ownerID, bookID, cause); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "settled"})
}

func (server *Server) handleWallet(ctx *gin.Context) {
	accountID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	account, err := server.services.Directory.Get(ctx.Request.Context(), accountID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"wallet_cents":  account.WalletBalance.Int64(),
		"deposit_cents": account.DepositBalance.Int64(),
	})
}

func (server *Server) handleWalletTopup(ctx *gin.Context) {
	accountID, ok := server.sessionAccountID(ctx)
	if !ok {
		return
	}
	var request topupRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "amount_cents is required"))
		return
	}
	if err := server.services.Directory.CreditWallet(ctx.Request.Context(), accountID, library.Money(request.AmountCents)); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	account, err := server.services.Directory.Get(ctx.Request.Context(), accountID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet_cents": account.WalletBalance.Int64()})
}

func (server *Server) handleListAccounts(ctx *gin.Context) {
	accounts, err := server.services.Directory.List(ctx.Request.Context())
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payloads := make([]accountPayload, 0, len(accounts))
	for _, account := range accounts {
		payloads = append(payloads, accountToPayload(account))
	}
	ctx.JSON(http.StatusOK, gin.H{"accounts": payloads})
}

func (server *Server) handlePromote(ctx *gin.Context) {
	accountID, err := library.NewAccountID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.services.Directory.Promote(ctx.Request.Context(), accountID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "promoted"})
}

func (server *Server) handleRemoveAccount(ctx *gin.Context) {
	accountID, err := library.NewAccountID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	if err := server.services.Directory.Remove(ctx.Request.Context(), accountID); err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (server *Server) handleMostBorrowed(ctx *gin.Context) {
	ranked, err := server.services.Reports.MostBorrowed(ctx.Request.Context())
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payloads := make([]gin.H, 0, len(ranked))
	for _, entry := range ranked {
		payloads = append(payloads, gin.H{
			"book":  bookToPayload(entry.Book),
			"times": entry.Times,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"most_borrowed": payloads})
}

func (server *Server) handleNeverBorrowed(ctx *gin.Context) {
	books, err := server.services.Reports.NeverBorrowed(ctx.Request.Context())
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"never_borrowed": booksToPayload(books)})
}

func (server *Server) handleOutstanding(ctx *gin.Context) {
	asOf := library.DateOf(time.Now())
	if raw := ctx.Query("as_of"); raw != "" {
		parsed, err := library.ParseDate(raw)
		if err != nil {
			server.respondDomainError(ctx, err)
			return
		}
		asOf = parsed
	}
	outstanding, err := server.services.Reports.OutstandingAsOf(ctx.Request.Context(), asOf)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payloads := make([]gin.H, 0, len(outstanding))
	for _, entry := range outstanding {
		payloads = append(payloads, gin.H{
			"loan":         loanToPayload(entry.Loan),
			"title":        entry.Book.Title,
			"borrower":     entry.Borrower.DisplayName,
			"days_overdue": entry.DaysOverdue,
			"due_display":  entry.Loan.DueOn.Display(),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"outstanding": payloads, "as_of": asOf.ISO()})
}

func (server *Server) handleAllFines(ctx *gin.Context) {
	entries, err := server.services.Reports.AllFines(ctx.Request.Context())
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"fines": fineEntriesToPayload(entries)})
}

func (server *Server) handleUnpaidFines(ctx *gin.Context) {
	report, err := server.services.Reports.UnpaidFines(ctx.Request.Context())
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"fines":       fineEntriesToPayload(report.Entries),
		"total_cents": report.Total.Int64(),
	})
}

func (server *Server) lookupBook(ctx *gin.Context) (library.Book, bool) {
	bookID, err := library.NewBookID(ctx.Param("id"))
	if err != nil {
		server.respondDomainError(ctx, err)
		return library.Book{}, false
	}
	book, err := server.services.Catalog.Get(ctx.Request.Context(), bookID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return library.Book{}, false
	}
	return book, true
}

func fineEntriesToPayload(entries []library.FineHistoryEntry) []gin.H {
	payloads := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, gin.H{
			"fine":  fineToPayload(entry.Fine),
			"title": entry.BookTitle,
			"owner": entry.Owner.DisplayName,
		})
	}
	return payloads
}
