package txbuilder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	httpclient "swapdesk/pkg/http"
)

// HTTPResolver resolves jetton wallet addresses through the directory
// service. Results are immutable on-chain, so they are cached forever.
type HTTPResolver struct {
	http *httpclient.Client

	mu    sync.RWMutex
	cache map[string]string
}

func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		http:  httpclient.NewClient(baseURL, timeout),
		cache: make(map[string]string),
	}
}

type walletResponse struct {
	WalletAddress string `json:"wallet_address"`
}

func (r *HTTPResolver) WalletOf(ctx context.Context, owner, master string) (string, error) {
	key := owner + "/" + master

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	body, err := r.http.Get(ctx, "/v1/jetton-wallet", map[string]string{
		"owner":  owner,
		"master": master,
	})
	if err != nil {
		return "", err
	}

	var resp walletResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("malformed jetton wallet response: %w", err)
	}
	if resp.WalletAddress == "" {
		return "", fmt.Errorf("empty jetton wallet for owner=%s master=%s", owner, master)
	}

	r.mu.Lock()
	r.cache[key] = resp.WalletAddress
	r.mu.Unlock()
	return resp.WalletAddress, nil
}
