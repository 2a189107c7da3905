// Package gateway defines the payment provider boundary. The service only
// ever sees transaction references and result codes; the provider's
// redirect and signature mechanics stay behind this interface.
package gateway

import "context"

// Result codes follow the provider convention: "00" means the customer
// paid, "07" and "10" mean the payment is still settling, "09" means the
// money came back. Anything unrecognized is treated as failed upstream.
const (
	CodeSuccess    = "00"
	CodeProcessing = "07"
	CodePending    = "10"
	CodeRefunded   = "09"
)

// Result is the provider's answer for one transaction query.
type Result struct {
	TransactionID string
	Code          string
	Message       string
	Amount        float64
}

type PaymentGateway interface {
	// CreatePayment registers a transaction with the provider and returns
	// the URL the customer completes the payment on.
	CreatePayment(ctx context.Context, transactionID, orderRef string, amount float64) (string, error)

	// QueryTransaction asks the provider for the current result of a
	// transaction.
	QueryTransaction(ctx context.Context, transactionID string) (*Result, error)
}
