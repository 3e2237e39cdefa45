package solana

import (
	"context"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
)

// sigStatus 签名状态的精简视图
type sigStatus struct {
	Found     bool
	Confirmed bool // confirmed 或 finalized
	Err       any  // 链上执行失败时非空
}

// RPC 后端用到的 Solana RPC 子集，便于测试替换
type RPC interface {
	GetBalance(ctx context.Context, base58Addr string) (uint64, error)
	LatestBlockhash(ctx context.Context) (string, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	SignatureStatus(ctx context.Context, signature string) (sigStatus, error)
}

type rpcAdapter struct {
	c *client.Client
}

// NewRPC 基于 blocto client 的实现
func NewRPC(endpoint string) RPC {
	return &rpcAdapter{c: client.NewClient(endpoint)}
}

func (a *rpcAdapter) GetBalance(ctx context.Context, base58Addr string) (uint64, error) {
	return a.c.GetBalance(ctx, base58Addr)
}

func (a *rpcAdapter) LatestBlockhash(ctx context.Context) (string, error) {
	v, err := a.c.GetLatestBlockhash(ctx)
	if err != nil {
		return "", err
	}
	return v.Blockhash, nil
}

func (a *rpcAdapter) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	return a.c.SendTransaction(ctx, tx)
}

func (a *rpcAdapter) SignatureStatus(ctx context.Context, signature string) (sigStatus, error) {
	st, err := a.c.GetSignatureStatus(ctx, signature)
	if err != nil {
		return sigStatus{}, err
	}
	if st == nil {
		return sigStatus{}, nil
	}
	out := sigStatus{Found: true, Err: st.Err}
	if st.ConfirmationStatus != nil {
		switch *st.ConfirmationStatus {
		case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
			out.Confirmed = true
		}
	}
	return out, nil
}
