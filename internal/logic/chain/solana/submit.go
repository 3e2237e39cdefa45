package solana

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	soltypes "github.com/blocto/solana-go-sdk/types"

	"multisend/internal/logic/chain"
	"multisend/internal/types"
	"multisend/pkg/logger"
)

var errConfirmTimeout = errors.New("confirmation timeout")

// Submit 按 ChunkSize 切分为连续分块，逐块签名、发送并等待确认。
// 任一分块失败立即停止，后续分块不会发送；已确认的分块无法回滚。
func (b *Backend) Submit(ctx context.Context, id chain.Identity, ops iter.Seq[chain.TransferOp]) (*chain.Receipt, error) {
	ident, ok := id.(*Identity)
	if !ok {
		return nil, chain.ErrIdentityMismatch
	}

	total := 0
	for range ops {
		total++
	}
	totalChunks := (total + b.opts.ChunkSize - 1) / b.opts.ChunkSize
	receipt := &chain.Receipt{Signatures: make([]string, 0, totalChunks)}

	chunkIndex := 0
	batch := make([]soltypes.Instruction, 0, b.opts.ChunkSize)

	flush := func() error {
		sig, err := b.sendChunk(ctx, ident, batch)
		if err != nil {
			logger.Errorf("[solana] chunk %d/%d failed: %v", chunkIndex+1, totalChunks, err)
			return &chain.SubmissionError{
				ChunkIndex:  chunkIndex,
				TotalChunks: totalChunks,
				Confirmed:   append([]string(nil), receipt.Signatures...),
				Pending:     sig,
				Cause:       err,
			}
		}
		logger.Infof("[solana] chunk %d/%d confirmed: %s (%d transfers)", chunkIndex+1, totalChunks, sig, len(batch))
		receipt.Signatures = append(receipt.Signatures, sig)
		receipt.Transfers += len(batch)
		chunkIndex++
		batch = batch[:0]
		return nil
	}

	for op := range ops {
		ix, ok := op.Native.(soltypes.Instruction)
		if !ok {
			return nil, &chain.SubmissionError{
				ChunkIndex:  chunkIndex,
				TotalChunks: totalChunks,
				Confirmed:   append([]string(nil), receipt.Signatures...),
				Cause:       fmt.Errorf("solana: transfer %d carries %T, not a solana instruction", op.Index, op.Native),
			}
		}
		batch = append(batch, ix)
		if len(batch) == b.opts.ChunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	return receipt, nil
}

// sendChunk 返回的签名在发送成功后即非空，即使随后确认失败
func (b *Backend) sendChunk(ctx context.Context, ident *Identity, ixs []soltypes.Instruction) (string, error) {
	// 最新 blockhash 证明签名时节点与网络同步
	callCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	blockhash, err := b.rpc.LatestBlockhash(callCtx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("solana: get latest blockhash: %w", err)
	}
	if _, err := types.HashFromBase58(blockhash); err != nil {
		return "", fmt.Errorf("solana: bad blockhash from rpc: %w", err)
	}

	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: soltypes.NewMessage(soltypes.NewMessageParam{
			FeePayer:        ident.account.PublicKey,
			RecentBlockhash: blockhash,
			Instructions:    ixs,
		}),
		Signers: []soltypes.Account{ident.account},
	})
	if err != nil {
		return "", fmt.Errorf("solana: sign transaction: %w", err)
	}

	callCtx, cancel = context.WithTimeout(ctx, b.opts.RequestTimeout)
	sig, err := b.rpc.SendTransaction(callCtx, tx)
	cancel()
	if err != nil {
		return "", fmt.Errorf("solana: send transaction: %w", err)
	}

	if err := b.waitConfirmed(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func (b *Backend) waitConfirmed(ctx context.Context, sig string) error {
	waitCtx, cancel := context.WithTimeout(ctx, b.opts.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(b.opts.PollInterval)
	defer ticker.Stop()

	for {
		callCtx, callCancel := context.WithTimeout(waitCtx, b.opts.RequestTimeout)
		st, err := b.rpc.SignatureStatus(callCtx, sig)
		callCancel()
		switch {
		case err != nil:
			// 单次查询失败不代表交易失败，继续轮询直到超时
			logger.Warnf("[solana] signature status %s: %v", sig, err)
		case st.Found && st.Err != nil:
			return fmt.Errorf("solana: transaction %s failed: %v", sig, st.Err)
		case st.Confirmed:
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("solana: transaction %s: %w after %s", sig, errConfirmTimeout, b.opts.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}
