package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PaperTrailLabs/circulation/internal/httpserver"
	"github.com/PaperTrailLabs/circulation/internal/store/gormstore"
	"github.com/PaperTrailLabs/circulation/pkg/library"
)

const (
	adminID        = "admin@example.com"
	adminSecret    = "admin-secret"
	borrowerID     = "reader@example.com"
	borrowerSecret = "reader-secret"
	bookISBN       = "978-0-13-468599-1"
)

type apiClient struct {
	test    *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func (client *apiClient) do(method string, path string, body any) *httptest.ResponseRecorder {
	client.test.Helper()
	var payload *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(client.test, err)
		payload = bytes.NewBuffer(encoded)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	request := httptest.NewRequest(method, path, payload)
	request.Header.Set("Content-Type", "application/json")
	for _, cookie := range client.cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	client.router.ServeHTTP(recorder, request)
	return recorder
}

func (client *apiClient) login(id string, secret string) {
	client.test.Helper()
	recorder := client.do(http.MethodPost, "/auth/login", gin.H{"id": id, "secret": secret})
	require.Equal(client.test, http.StatusOK, recorder.Code, recorder.Body.String())
	client.cookies = recorder.Result().Cookies()
	require.NotEmpty(client.test, client.cookies)
}

func decodeBody(test *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	test.Helper()
	var decoded map[string]any
	require.NoError(test, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func newTestRouter(test *testing.T) *gin.Engine {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/circulation.db"), &gorm.Config{})
	require.NoError(test, err)
	require.NoError(test, database.AutoMigrate(gormstore.Models()...))

	catalog, err := library.NewCatalog(gormstore.NewCatalog(database))
	require.NoError(test, err)
	directory, err := library.NewDirectory(gormstore.NewDirectory(database))
	require.NoError(test, err)
	today := library.NewDate(2026, time.March, 1)
	ledger, err := library.NewLedger(gormstore.NewLedger(database), catalog, directory, func() library.Date { return today })
	require.NoError(test, err)
	catalog.BindLoanActivity(ledger)
	directory.BindPromotionGate(ledger)
	reports, err := library.NewReports(catalog, directory, ledger)
	require.NoError(test, err)

	ctx := context.Background()
	adminAccountID, err := library.NewAccountID(adminID)
	require.NoError(test, err)
	_, err = directory.Register(ctx, adminAccountID, "Site Admin", adminSecret, library.RoleAdmin)
	require.NoError(test, err)

	server, err := httpserver.NewServer(
		httpserver.Config{SessionSigningKey: "test-signing-key"},
		httpserver.Services{Catalog: catalog, Directory: directory, Ledger: ledger, Reports: reports},
		zap.NewNop(),
	)
	require.NoError(test, err)
	return server.Router()
}

func TestHealthz(test *testing.T) {
	test.Parallel()
	client := &apiClient{test: test, router: newTestRouter(test)}
	recorder := client.do(http.MethodGet, "/healthz", nil)
	require.Equal(test, http.StatusOK, recorder.Code)
}

func TestSessionRequired(test *testing.T) {
	test.Parallel()
	client := &apiClient{test: test, router: newTestRouter(test)}
	recorder := client.do(http.MethodGet, "/api/books", nil)
	require.Equal(test, http.StatusUnauthorized, recorder.Code)
}

func TestRegisterIssuesSessionAndSeedsDeposit(test *testing.T) {
	test.Parallel()
	client := &apiClient{test: test, router: newTestRouter(test)}

	recorder := client.do(http.MethodPost, "/auth/register", gin.H{
		"id":           borrowerID,
		"display_name": "Reader One",
		"secret":       borrowerSecret,
	})
	require.Equal(test, http.StatusCreated, recorder.Code, recorder.Body.String())
	client.cookies = recorder.Result().Cookies()
	require.NotEmpty(test, client.cookies)

	body := decodeBody(test, recorder)
	account := body["account"].(map[string]any)
	assert.Equal(test, "BORROWER", account["role"])
	assert.EqualValues(test, 150000, account["deposit_cents"])

	session := client.do(http.MethodGet, "/api/session", nil)
	require.Equal(test, http.StatusOK, session.Code)
	sessionBody := decodeBody(test, session)
	assert.Equal(test, borrowerID, sessionBody["account_id"])
}

func TestBorrowerCannotUseAdminRoutes(test *testing.T) {
	test.Parallel()
	client := &apiClient{test: test, router: newTestRouter(test)}
	recorder := client.do(http.MethodPost, "/auth/register", gin.H{
		"id":           borrowerID,
		"display_name": "Reader One",
		"secret":       borrowerSecret,
	})
	require.Equal(test, http.StatusCreated, recorder.Code)
	client.cookies = recorder.Result().Cookies()

	forbidden := client.do(http.MethodPost, "/api/books", gin.H{
		"id":              bookISBN,
		"title":           "Forbidden Insert",
		"unit_cost_cents": 2500,
	})
	require.Equal(test, http.StatusForbidden, forbidden.Code)
}

func TestLendingFlow(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	admin := &apiClient{test: test, router: router}
	admin.login(adminID, adminSecret)

	created := admin.do(http.MethodPost, "/api/books", gin.H{
		"id":               bookISBN,
		"title":            "The Go Programming Language",
		"author":           "Donovan, Kernighan",
		"available_copies": 2,
		"unit_cost_cents":  2500,
	})
	require.Equal(test, http.StatusCreated, created.Code, created.Body.String())

	borrower := &apiClient{test: test, router: router}
	registered := borrower.do(http.MethodPost, "/auth/register", gin.H{
		"id":           borrowerID,
		"display_name": "Reader One",
		"secret":       borrowerSecret,
	})
	require.Equal(test, http.StatusCreated, registered.Code)
	borrower.cookies = registered.Result().Cookies()

	borrowed := borrower.do(http.MethodPost, "/api/loans", gin.H{"book_id": bookISBN})
	require.Equal(test, http.StatusCreated, borrowed.Code, borrowed.Body.String())
	loan := decodeBody(test, borrowed)["loan"].(map[string]any)
	assert.Equal(test, "2026-03-16", loan["due_on"])

	duplicate := borrower.do(http.MethodPost, "/api/loans", gin.H{"book_id": bookISBN})
	require.Equal(test, http.StatusConflict, duplicate.Code)
	duplicateBody := decodeBody(test, duplicate)
	assert.Equal(test, "already_borrowed", duplicateBody["error"].(map[string]any)["code"])

	status := borrower.do(http.MethodGet, "/api/books/"+bookISBN+"/status", nil)
	require.Equal(test, http.StatusOK, status.Code)
	statusBody := decodeBody(test, status)
	assert.Equal(test, true, statusBody["borrowed"])
	assert.Equal(test, "16/03/2026", statusBody["expected_return"])

	backdated := borrower.do(http.MethodPost, "/api/loans/return", gin.H{
		"book_id":     bookISBN,
		"returned_on": "2026-02-20",
	})
	require.Equal(test, http.StatusBadRequest, backdated.Code, backdated.Body.String())

	// Five days past due: 5 x 200 cents, no doubling yet.
	returned := borrower.do(http.MethodPost, "/api/loans/return", gin.H{
		"book_id":     bookISBN,
		"returned_on": "2026-03-21",
	})
	require.Equal(test, http.StatusOK, returned.Code, returned.Body.String())
	returnBody := decodeBody(test, returned)
	assert.Equal(test, true, returnBody["fine_issued"])
	assert.EqualValues(test, 1000, returnBody["fine_cents"])
	assert.EqualValues(test, 5, returnBody["days_overdue"])

	blocked := borrower.do(http.MethodPost, "/api/loans", gin.H{"book_id": bookISBN})
	require.Equal(test, http.StatusUnprocessableEntity, blocked.Code)
	blockedBody := decodeBody(test, blocked)
	assert.Equal(test, "has_unpaid_fines", blockedBody["error"].(map[string]any)["code"])

	insufficient := borrower.do(http.MethodPost, "/api/fines/settle/wallet", nil)
	require.Equal(test, http.StatusUnprocessableEntity, insufficient.Code)

	topup := borrower.do(http.MethodPost, "/api/wallet/topup", gin.H{"amount_cents": 1500})
	require.Equal(test, http.StatusOK, topup.Code)

	settled := borrower.do(http.MethodPost, "/api/fines/settle/wallet", nil)
	require.Equal(test, http.StatusOK, settled.Code, settled.Body.String())
	settledBody := decodeBody(test, settled)
	assert.EqualValues(test, 1000, settledBody["settled_cents"])

	wallet := borrower.do(http.MethodGet, "/api/wallet", nil)
	require.Equal(test, http.StatusOK, wallet.Code)
	walletBody := decodeBody(test, wallet)
	assert.EqualValues(test, 500, walletBody["wallet_cents"])

	promoted := admin.do(http.MethodPost, "/api/accounts/"+borrowerID+"/promote", nil)
	require.Equal(test, http.StatusOK, promoted.Code, promoted.Body.String())

	unpaid := admin.do(http.MethodGet, "/api/reports/unpaid-fines", nil)
	require.Equal(test, http.StatusOK, unpaid.Code)
	unpaidBody := decodeBody(test, unpaid)
	assert.EqualValues(test, 0, unpaidBody["total_cents"])

	mostBorrowed := admin.do(http.MethodGet, "/api/reports/most-borrowed", nil)
	require.Equal(test, http.StatusOK, mostBorrowed.Code)
	rankedBody := decodeBody(test, mostBorrowed)
	require.Len(test, rankedBody["most_borrowed"], 1)
}
