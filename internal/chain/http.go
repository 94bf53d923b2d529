package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pathpay-backend/internal/logger"
)

// HTTPClient talks to a chain gateway over JSON/HTTP. Every call carries a
// bounded timeout so a stalled gateway can never wedge the reconciler.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type submitRequest struct {
	From       string `json:"from"`
	To         string `json:"to"`
	AmountUSDC int64  `json:"amount_usdc"`
	Memo       string `json:"memo"`
}

type submitResponse struct {
	TxHash string `json:"tx_hash"`
}

func (c *HTTPClient) SubmitTransfer(ctx context.Context, from, to string, amountUSDC int64, memo string) (string, error) {
	logger.ChainCall("SubmitTransfer", "from", from, "to", to, "amount_usdc", amountUSDC)

	body, err := json.Marshal(submitRequest{From: from, To: to, AmountUSDC: amountUSDC, Memo: memo})
	if err != nil {
		return "", fmt.Errorf("encode submit request: %w", err)
	}

	var resp submitResponse
	err = c.do(ctx, http.MethodPost, "/v1/transfers", bytes.NewReader(body), &resp)
	logger.ChainResult("SubmitTransfer", err)
	if err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("chain gateway returned empty tx hash")
	}
	return resp.TxHash, nil
}

func (c *HTTPClient) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	logger.ChainCall("GetReceipt", "tx_hash", txHash)

	var receipt Receipt
	err := c.do(ctx, http.MethodGet, "/v1/transfers/"+txHash, nil, &receipt)
	logger.ChainResult("GetReceipt", err)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build chain request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chain gateway returned %d: %s", resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode chain response: %w", err)
	}
	return nil
}
