// internal/balance/http.go
package balance

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/hiddencargo/internal/clients"
)

// HTTPService reports profits to the remote balance service.
type HTTPService struct {
	client *clients.BaseClient
}

type profitRequest struct {
	Username string `json:"username"`
	Amount   int    `json:"amount"`
}

type profitResponse struct {
	UserBalance *int `json:"userBalance"`
}

// NewHTTPService posts to the endpoint at url.
func NewHTTPService(url, apiKey string) *HTTPService {
	return &HTTPService{client: clients.NewBaseClient(url, apiKey)}
}

func (s *HTTPService) ReportProfit(ctx context.Context, nickname string, profit int) (int, error) {
	var resp profitResponse
	if err := s.client.Post(ctx, "", profitRequest{Username: nickname, Amount: profit}, &resp); err != nil {
		return 0, fmt.Errorf("report profit for %s: %w", nickname, err)
	}
	if resp.UserBalance == nil {
		return 0, fmt.Errorf("report profit for %s: response carries no userBalance", nickname)
	}
	return *resp.UserBalance, nil
}
