package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

type balanceData struct {
	Balance          *float64 `json:"balance"`
	AvailableBalance *float64 `json:"available_balance"`
}

// Balance reads the wallet balance. data may be a bare number or an object
// with balance or available_balance.
func (c *Client) Balance(ctx context.Context, businessID uint) (float64, error) {
	env, err := c.do(ctx, "wallet_balance", http.MethodGet, "/wallet/balance", businessQuery(businessID), nil)
	if err != nil {
		return 0, err
	}
	d := bytes.TrimSpace(env.Data)
	if len(d) > 0 && d[0] != '{' {
		var n float64
		if err := json.Unmarshal(d, &n); err != nil {
			return 0, fmt.Errorf("wallet balance: decode response: %w", err)
		}
		return n, nil
	}
	var b balanceData
	if err := env.decodeData(&b); err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	switch {
	case b.AvailableBalance != nil:
		return *b.AvailableBalance, nil
	case b.Balance != nil:
		return *b.Balance, nil
	default:
		return 0, fmt.Errorf("wallet balance: decode response: no balance field")
	}
}

func (c *Client) ListOriginAddresses(ctx context.Context, businessID uint) ([]domain.OriginAddress, error) {
	env, err := c.do(ctx, "list_origins", http.MethodGet, "/shipments/origin-addresses", businessQuery(businessID), nil)
	if err != nil {
		return nil, err
	}
	out := []domain.OriginAddress{}
	if env.hasData() {
		if err := env.decodeData(&out); err != nil {
			return nil, fmt.Errorf("list origin addresses: %w", err)
		}
	}
	return out, nil
}

func (c *Client) CreateOriginAddress(ctx context.Context, businessID uint, addr domain.OriginAddress) (*domain.OriginAddress, error) {
	env, err := c.do(ctx, "create_origin", http.MethodPost, "/shipments/origin-addresses", businessQuery(businessID), addr)
	if err != nil {
		return nil, err
	}
	var out domain.OriginAddress
	if err := env.decodeData(&out); err != nil {
		return nil, fmt.Errorf("create origin address: %w", err)
	}
	return &out, nil
}

func (c *Client) UpdateOriginAddress(ctx context.Context, businessID uint, id uint, addr domain.OriginAddress) (*domain.OriginAddress, error) {
	path := "/shipments/origin-addresses/" + strconv.FormatUint(uint64(id), 10)
	env, err := c.do(ctx, "update_origin", http.MethodPut, path, businessQuery(businessID), addr)
	if err != nil {
		return nil, err
	}
	var out domain.OriginAddress
	if err := env.decodeData(&out); err != nil {
		return nil, fmt.Errorf("update origin address: %w", err)
	}
	return &out, nil
}

func (c *Client) DeleteOriginAddress(ctx context.Context, businessID uint, id uint) error {
	path := "/shipments/origin-addresses/" + strconv.FormatUint(uint64(id), 10)
	_, err := c.do(ctx, "delete_origin", http.MethodDelete, path, businessQuery(businessID), nil)
	return err
}

// GetOrder fetches an order for wizard prefill.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	env, err := c.do(ctx, "get_order", http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil)
	if err != nil {
		return nil, err
	}
	var o domain.Order
	if err := env.decodeData(&o); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func businessQuery(businessID uint) url.Values {
	if businessID == 0 {
		return nil
	}
	return url.Values{"business_id": {strconv.FormatUint(uint64(businessID), 10)}}
}
