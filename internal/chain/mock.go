package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// MockClient is an in-memory chain for demos and tests. Submissions confirm
// after a configurable number of receipt polls so reconciler flows can be
// exercised without a gateway.
type MockClient struct {
	mu            sync.Mutex
	receipts      map[string]*Receipt
	polls         map[string]int
	ConfirmAfter  int
	FinalizeAfter int
	SubmitErr     error
	nextBlock     int64
}

func NewMockClient() *MockClient {
	return &MockClient{
		receipts:      make(map[string]*Receipt),
		polls:         make(map[string]int),
		ConfirmAfter:  1,
		FinalizeAfter: 2,
		nextBlock:     1000,
	}
}

func (m *MockClient) SubmitTransfer(ctx context.Context, from, to string, amountUSDC int64, memo string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", from, to, amountUSDC, memo)))
	hash := "0x" + hex.EncodeToString(sum[:])

	if _, ok := m.receipts[hash]; !ok {
		m.nextBlock++
		m.receipts[hash] = &Receipt{
			TxHash:      hash,
			Status:      ReceiptStatusPending,
			BlockNumber: m.nextBlock,
		}
	}
	return hash, nil
}

func (m *MockClient) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, ErrNotFound
	}

	m.polls[txHash]++
	if receipt.Status != ReceiptStatusFailed {
		switch {
		case m.polls[txHash] >= m.FinalizeAfter:
			receipt.Status = ReceiptStatusFinalized
		case m.polls[txHash] >= m.ConfirmAfter:
			receipt.Status = ReceiptStatusConfirmed
		}
	}

	copied := *receipt
	return &copied, nil
}

// FailTransfer flips a submitted hash to FAILED so tests can drive the
// retry and alerting paths.
func (m *MockClient) FailTransfer(txHash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if receipt, ok := m.receipts[txHash]; ok {
		receipt.Status = ReceiptStatusFailed
	}
}
