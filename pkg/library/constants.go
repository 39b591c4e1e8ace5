package library

const (
	loanPeriodDays = 15
	maxOpenLoans   = 3
	maxExtensions  = 2

	overdueFinePerDayCents    = Money(200)
	overdueDoublingPeriodDays = 10
	overdueFineCapPercent     = 80
	lostBookFinePercent       = 50
	lostCardFineCents         = Money(1000)

	borrowerDepositSeedCents = Money(150000)
	defaultFineCeilingCents  = Money(100000)

	cardFineBookKey = "CARD"

	operationAddBook          = "add_book"
	operationModifyBook       = "modify_book"
	operationRemoveBook       = "remove_book"
	operationRegister         = "register"
	operationPromote          = "promote"
	operationRemoveAccount    = "remove_account"
	operationCreditWallet     = "credit_wallet"
	operationDebitWallet      = "debit_wallet"
	operationBorrow           = "borrow"
	operationReturn           = "return"
	operationExtend           = "extend"
	operationReportLost       = "report_lost"
	operationReportLostCard   = "report_lost_card"
	operationSettleOne        = "settle_one"
	operationSettleAllCash    = "settle_all_cash"
	operationSettleAllWallet  = "settle_all_wallet"

	operationStatusOK    = "ok"
	operationStatusError = "error"
)
