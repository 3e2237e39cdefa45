package terra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// LCD 后端用到的 Terra LCD 接口子集
type LCD interface {
	Account(ctx context.Context, address string) (*AccountInfo, error)
	BankBalance(ctx context.Context, address, denom string) (sdkmath.Int, error)
	CW20Balance(ctx context.Context, contract, address string) (sdkmath.Int, error)
	Simulate(ctx context.Context, txBytes []byte) (uint64, error)
	Broadcast(ctx context.Context, txBytes []byte) (*BroadcastResult, error)
}

// AccountInfo 签名所需的账户号与序列号
type AccountInfo struct {
	Address       string
	AccountNumber uint64
	Sequence      uint64
}

// BroadcastResult sync 模式下 CheckTx 的结果
type BroadcastResult struct {
	TxHash string
	Code   uint32
	RawLog string
}

type lcdClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewLCD 基于 REST LCD 的实现，超时由调用方 ctx 控制
func NewLCD(baseURL string, httpClient *http.Client) LCD {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &lcdClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

type lcdAccountResponse struct {
	Account struct {
		Address       string `json:"address"`
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
		// vesting 账户把基础字段嵌套在 base_vesting_account.base_account 中
		BaseVestingAccount *struct {
			BaseAccount struct {
				Address       string `json:"address"`
				AccountNumber string `json:"account_number"`
				Sequence      string `json:"sequence"`
			} `json:"base_account"`
		} `json:"base_vesting_account,omitempty"`
	} `json:"account"`
}

func (c *lcdClient) Account(ctx context.Context, address string) (*AccountInfo, error) {
	var resp lcdAccountResponse
	if err := c.get(ctx, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), &resp); err != nil {
		return nil, err
	}

	addr, num, seq := resp.Account.Address, resp.Account.AccountNumber, resp.Account.Sequence
	if bv := resp.Account.BaseVestingAccount; bv != nil {
		addr, num, seq = bv.BaseAccount.Address, bv.BaseAccount.AccountNumber, bv.BaseAccount.Sequence
	}

	accountNumber, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("terra: failed to parse account number %q: %w", num, err)
	}
	sequence, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("terra: failed to parse sequence %q: %w", seq, err)
	}
	return &AccountInfo{Address: addr, AccountNumber: accountNumber, Sequence: sequence}, nil
}

func (c *lcdClient) BankBalance(ctx context.Context, address, denom string) (sdkmath.Int, error) {
	var resp struct {
		Balance struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"balance"`
	}
	path := "/cosmos/bank/v1beta1/balances/" + url.PathEscape(address) + "/by_denom?denom=" + url.QueryEscape(denom)
	if err := c.get(ctx, path, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	return parseAmount(resp.Balance.Amount)
}

func (c *lcdClient) CW20Balance(ctx context.Context, contract, address string) (sdkmath.Int, error) {
	query, err := json.Marshal(map[string]any{"balance": map[string]string{"address": address}})
	if err != nil {
		return sdkmath.Int{}, err
	}
	var resp struct {
		Data struct {
			Balance string `json:"balance"`
		} `json:"data"`
	}
	// URL-safe 编码，避免路径中出现 '/'
	path := "/cosmwasm/wasm/v1/contract/" + url.PathEscape(contract) + "/smart/" +
		base64.URLEncoding.EncodeToString(query)
	if err := c.get(ctx, path, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	return parseAmount(resp.Data.Balance)
}

func (c *lcdClient) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	var resp struct {
		GasInfo struct {
			GasWanted string `json:"gas_wanted"`
			GasUsed   string `json:"gas_used"`
		} `json:"gas_info"`
	}
	req := map[string]string{"tx_bytes": base64.StdEncoding.EncodeToString(txBytes)}
	if err := c.post(ctx, "/cosmos/tx/v1beta1/simulate", req, &resp); err != nil {
		return 0, err
	}
	used, err := strconv.ParseUint(resp.GasInfo.GasUsed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("terra: failed to parse gas_used %q: %w", resp.GasInfo.GasUsed, err)
	}
	return used, nil
}

func (c *lcdClient) Broadcast(ctx context.Context, txBytes []byte) (*BroadcastResult, error) {
	var resp struct {
		TxResponse struct {
			TxHash string `json:"txhash"`
			Code   uint32 `json:"code"`
			RawLog string `json:"raw_log"`
		} `json:"tx_response"`
	}
	req := map[string]string{
		"tx_bytes": base64.StdEncoding.EncodeToString(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	if err := c.post(ctx, "/cosmos/tx/v1beta1/txs", req, &resp); err != nil {
		return nil, err
	}
	return &BroadcastResult{
		TxHash: resp.TxResponse.TxHash,
		Code:   resp.TxResponse.Code,
		RawLog: resp.TxResponse.RawLog,
	}, nil
}

func (c *lcdClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("terra: failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *lcdClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("terra: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *lcdClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("terra: failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("terra: %s %s: unexpected status code %d, body: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("terra: failed to decode response: %w", err)
	}
	return nil
}

func parseAmount(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	v, ok := sdkmath.NewIntFromString(s)
	if !ok || v.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("terra: invalid amount %q", s)
	}
	return v, nil
}
