package terra

import (
	"context"
	"errors"
	"fmt"
	"iter"
	stdmath "math"

	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"

	"multisend/internal/logic/chain"
	"multisend/pkg/logger"
)

var errMissingGasPrice = errors.New("terra: gas price is required to broadcast")

// Submit 所有转账放入同一笔交易，一次签名一次广播（sync 模式）
func (b *Backend) Submit(ctx context.Context, id chain.Identity, ops iter.Seq[chain.TransferOp]) (*chain.Receipt, error) {
	ident, ok := id.(*Identity)
	if !ok {
		return nil, chain.ErrIdentityMismatch
	}
	fail := func(err error) error {
		logger.Errorf("[terra] submission failed: %v", err)
		return &chain.SubmissionError{ChunkIndex: 0, TotalChunks: 1, Cause: err}
	}

	var msgs []*codectypes.Any
	for op := range ops {
		msg, ok := op.Native.(sdk.Msg)
		if !ok {
			return nil, fail(fmt.Errorf("terra: transfer %d carries %T, not a cosmos msg", op.Index, op.Native))
		}
		msgAny, err := codectypes.NewAnyWithValue(msg)
		if err != nil {
			return nil, fail(fmt.Errorf("terra: failed to create message any: %w", err))
		}
		msgs = append(msgs, msgAny)
	}
	if len(msgs) == 0 {
		return &chain.Receipt{}, nil
	}
	if b.gasPrice == nil {
		return nil, fail(errMissingGasPrice)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	account, err := b.lcd.Account(callCtx, ident.Address())
	cancel()
	if err != nil {
		return nil, fail(&chain.NetworkError{Op: "terra account " + ident.Address(), Cause: err})
	}

	pubKeyAny, err := codectypes.NewAnyWithValue(ident.priv.PubKey())
	if err != nil {
		return nil, fail(fmt.Errorf("terra: failed to create pubkey any: %w", err))
	}
	bodyBytes, err := b.cdc.Marshal(&txtypes.TxBody{Messages: msgs, Memo: b.opts.Memo})
	if err != nil {
		return nil, fail(fmt.Errorf("terra: failed to marshal tx body: %w", err))
	}

	// 模拟时签名为空占位，节点在 simulate 模式下跳过验签
	simAuthInfo, err := b.authInfoBytes(pubKeyAny, account.Sequence, nil, 0)
	if err != nil {
		return nil, fail(err)
	}
	simBytes, err := b.cdc.Marshal(&txtypes.TxRaw{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: simAuthInfo,
		Signatures:    [][]byte{{}},
	})
	if err != nil {
		return nil, fail(fmt.Errorf("terra: failed to marshal simulate tx: %w", err))
	}

	callCtx, cancel = context.WithTimeout(ctx, b.opts.RequestTimeout)
	gasUsed, err := b.lcd.Simulate(callCtx, simBytes)
	cancel()
	if err != nil {
		return nil, fail(fmt.Errorf("terra: simulate: %w", err))
	}
	gasLimit, fee := b.computeFee(gasUsed)
	logger.Infof("[terra] simulated gas %d, limit %d, fee %s", gasUsed, gasLimit, fee)

	authInfo, err := b.authInfoBytes(pubKeyAny, account.Sequence, sdk.Coins{fee}, gasLimit)
	if err != nil {
		return nil, fail(err)
	}
	signDoc := &txtypes.SignDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfo,
		ChainId:       b.opts.ChainID,
		AccountNumber: account.AccountNumber,
	}
	signBytes, err := signDoc.Marshal()
	if err != nil {
		return nil, fail(fmt.Errorf("terra: failed to marshal sign doc: %w", err))
	}
	sig, err := ident.priv.Sign(signBytes)
	if err != nil {
		return nil, fail(fmt.Errorf("terra: sign: %w", err))
	}
	txBytes, err := b.cdc.Marshal(&txtypes.TxRaw{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfo,
		Signatures:    [][]byte{sig},
	})
	if err != nil {
		return nil, fail(fmt.Errorf("terra: failed to marshal tx: %w", err))
	}

	callCtx, cancel = context.WithTimeout(ctx, b.opts.RequestTimeout)
	res, err := b.lcd.Broadcast(callCtx, txBytes)
	cancel()
	if err != nil {
		return nil, fail(&chain.NetworkError{Op: "terra broadcast", Cause: err})
	}
	if res.Code != 0 {
		return nil, fail(fmt.Errorf("terra: transaction %s rejected: code=%d log=%s", res.TxHash, res.Code, res.RawLog))
	}

	logger.Infof("[terra] transaction %s accepted, %d transfers", res.TxHash, len(msgs))
	return &chain.Receipt{Signatures: []string{res.TxHash}, Transfers: len(msgs)}, nil
}

func (b *Backend) authInfoBytes(pubKey *codectypes.Any, sequence uint64, fee sdk.Coins, gasLimit uint64) ([]byte, error) {
	authInfo := &txtypes.AuthInfo{
		SignerInfos: []*txtypes.SignerInfo{{
			PublicKey: pubKey,
			ModeInfo: &txtypes.ModeInfo{
				Sum: &txtypes.ModeInfo_Single_{
					Single: &txtypes.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: sequence,
		}},
		Fee: &txtypes.Fee{Amount: fee, GasLimit: gasLimit},
	}
	bz, err := b.cdc.Marshal(authInfo)
	if err != nil {
		return nil, fmt.Errorf("terra: failed to marshal auth info: %w", err)
	}
	return bz, nil
}

// computeFee gas = ceil(used * adjustment)，fee = ceil(gas * price)
func (b *Backend) computeFee(gasUsed uint64) (uint64, sdk.Coin) {
	gasLimit := uint64(stdmath.Ceil(float64(gasUsed) * b.opts.GasAdjustment))
	amount := b.gasPrice.Amount.MulInt64(int64(gasLimit)).Ceil().TruncateInt()
	return gasLimit, sdk.NewCoin(b.gasPrice.Denom, amount)
}
