package gateway

import (
	"context"
	"fmt"
	"sync"
)

// Sandbox is an in-process provider for development and tests. Created
// transactions start with the pending code; SetResult scripts the answer a
// later query returns.
type Sandbox struct {
	mu      sync.Mutex
	results map[string]Result
}

func NewSandbox() *Sandbox {
	return &Sandbox{results: make(map[string]Result)}
}

func (g *Sandbox) CreatePayment(ctx context.Context, transactionID, orderRef string, amount float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.results[transactionID] = Result{
		TransactionID: transactionID,
		Code:          CodePending,
		Message:       "transaction created",
		Amount:        amount,
	}
	return fmt.Sprintf("https://sandbox.gateway.local/pay?ref=%s&order=%s", transactionID, orderRef), nil
}

func (g *Sandbox) QueryTransaction(ctx context.Context, transactionID string) (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result, ok := g.results[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s unknown to gateway", transactionID)
	}
	return &result, nil
}

// SetResult scripts the outcome of a transaction.
func (g *Sandbox) SetResult(transactionID, code, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := g.results[transactionID]
	result.TransactionID = transactionID
	result.Code = code
	result.Message = message
	g.results[transactionID] = result
}
