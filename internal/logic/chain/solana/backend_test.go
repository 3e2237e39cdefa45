package solana

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisend/internal/logic/chain"
	"multisend/internal/logic/instruction"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// fakeRPC 记录发送的交易，可按调用序号注入失败
type fakeRPC struct {
	mu          sync.Mutex
	balances    map[string]uint64
	balanceErr  error
	sendErrAt   map[int]error // 第 n 次 SendTransaction（从 0 开始）返回错误
	failedSig   map[string]bool
	sent        []soltypes.Transaction
	blockhash   string
	unconfirmed bool
}

func newFakeRPC() *fakeRPC {
	return &fakeRPC{
		balances:  map[string]uint64{},
		sendErrAt: map[int]error{},
		failedSig: map[string]bool{},
		blockhash: soltypes.NewAccount().PublicKey.ToBase58(),
	}
}

func (f *fakeRPC) GetBalance(_ context.Context, addr string) (uint64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[addr], nil
}

func (f *fakeRPC) LatestBlockhash(context.Context) (string, error) {
	return f.blockhash, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, tx soltypes.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.sent)
	if err, ok := f.sendErrAt[n]; ok {
		return "", err
	}
	f.sent = append(f.sent, tx)
	return sigName(n), nil
}

func (f *fakeRPC) SignatureStatus(_ context.Context, sig string) (sigStatus, error) {
	if f.failedSig[sig] {
		return sigStatus{Found: true, Err: "InstructionError"}, nil
	}
	if f.unconfirmed {
		return sigStatus{Found: false}, nil
	}
	return sigStatus{Found: true, Confirmed: true}, nil
}

func sigName(n int) string {
	return "sig-" + string(rune('a'+n))
}

func newTestBackend(rpc RPC) *Backend {
	return NewWithRPC(Options{
		Network:        "devnet",
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	}, rpc)
}

func newAddr() string {
	return soltypes.NewAccount().PublicKey.ToBase58()
}

func instructionFor(sender string, senderAmount float64, recipients []string, each float64) *instruction.MultisendInstruction {
	m := &instruction.MultisendInstruction{
		Senders: []instruction.TransferInstruction{{Address: sender, Amount: senderAmount, Coin: "sol"}},
	}
	for _, r := range recipients {
		m.Recipients = append(m.Recipients, instruction.TransferInstruction{Address: r, Amount: each, Coin: "sol"})
	}
	return m
}

func TestValidateAddresses(t *testing.T) {
	b := newTestBackend(newFakeRPC())

	t.Run("empty address", func(t *testing.T) {
		m := instructionFor("", 0.1, []string{"", ""}, 0.05)
		err := b.ValidateAddresses(m)
		var invalid *chain.InvalidAddressError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, instruction.RoleRecipient, invalid.Role)
		assert.Equal(t, "", invalid.Address)
	})

	t.Run("bad sender", func(t *testing.T) {
		m := instructionFor("not-base58-0OIl", 0.1, []string{newAddr()}, 0.1)
		err := b.ValidateAddresses(m)
		var invalid *chain.InvalidAddressError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, instruction.RoleSender, invalid.Role)
		assert.Equal(t, "not-base58-0OIl", invalid.Address)
	})

	t.Run("all valid", func(t *testing.T) {
		m := instructionFor(newAddr(), 0.1, []string{newAddr(), newAddr()}, 0.05)
		assert.NoError(t, b.ValidateAddresses(m))
	})
}

func TestValidateBalances(t *testing.T) {
	sender := newAddr()
	m := instructionFor(sender, 0.1, []string{newAddr()}, 0.1)

	t.Run("insufficient", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.balances[sender] = 99_999_999
		err := newTestBackend(rpc).ValidateBalances(context.Background(), m)
		var insufficient *chain.InsufficientBalanceError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, uint64(100_000_000), insufficient.Required)
		assert.Equal(t, uint64(99_999_999), insufficient.Available)
		assert.Equal(t, sender, insufficient.Address)
	})

	t.Run("exact", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.balances[sender] = 100_000_000
		b := newTestBackend(rpc)
		assert.NoError(t, b.ValidateBalances(context.Background(), m))
		// 只读，可重复
		assert.NoError(t, b.ValidateBalances(context.Background(), m))
		assert.Empty(t, rpc.sent)
	})

	t.Run("network error is not insufficient balance", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.balanceErr = errors.New("connection refused")
		err := newTestBackend(rpc).ValidateBalances(context.Background(), m)
		var netErr *chain.NetworkError
		require.True(t, errors.As(err, &netErr))
		var insufficient *chain.InsufficientBalanceError
		assert.False(t, errors.As(err, &insufficient))
	})

	t.Run("repeated sender is summed", func(t *testing.T) {
		rpc := newFakeRPC()
		rpc.balances[sender] = 150_000_000
		dup := &instruction.MultisendInstruction{Senders: []instruction.TransferInstruction{
			{Address: sender, Amount: 0.1, Coin: "sol"},
			{Address: sender, Amount: 0.1, Coin: "sol"},
		}}
		err := newTestBackend(rpc).ValidateBalances(context.Background(), dup)
		var insufficient *chain.InsufficientBalanceError
		require.True(t, errors.As(err, &insufficient))
		assert.Equal(t, uint64(200_000_000), insufficient.Required)
	})
}

func TestBuildTransfers(t *testing.T) {
	b := newTestBackend(newFakeRPC())
	id := NewIdentity(soltypes.NewAccount())
	recipients := []string{newAddr(), newAddr(), newAddr()}
	m := instructionFor(id.Address(), 0.3, recipients, 0.1)

	ops, err := b.BuildTransfers(id, m)
	require.NoError(t, err)

	first := slices.Collect(ops)
	second := slices.Collect(ops)
	require.Len(t, first, 3)
	assert.Equal(t, len(first), len(second))
	for i, op := range first {
		assert.Equal(t, i, op.Index)
		assert.Equal(t, recipients[i], op.Recipient)
		assert.Equal(t, uint64(100_000_000), op.Amount)
		assert.Equal(t, op.Recipient, second[i].Recipient)
		_, ok := op.Native.(soltypes.Instruction)
		assert.True(t, ok)
	}

	_, err = b.BuildTransfers(id, instructionFor(id.Address(), 0.1, []string{"bad"}, 0.1))
	var invalid *chain.InvalidAddressError
	assert.True(t, errors.As(err, &invalid))
}

func TestBuildTransfers_SignerMustBeSender(t *testing.T) {
	rpc := newFakeRPC()
	b := newTestBackend(rpc)
	id := NewIdentity(soltypes.NewAccount())
	sender := newAddr()
	rpc.balances[sender] = 1_000_000_000

	// 余额校验针对声明的发送者，扣款的却是签名身份，两者必须一致
	m := instructionFor(sender, 0.5, []string{newAddr()}, 0.5)
	require.NoError(t, b.ValidateBalances(context.Background(), m))

	_, err := b.BuildTransfers(id, m)
	var invalid *chain.InvalidAddressError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, instruction.RoleSender, invalid.Role)
	assert.Equal(t, sender, invalid.Address)
	assert.ErrorIs(t, err, chain.ErrSignerNotSender)
	assert.Empty(t, rpc.sent)

	// 多个发送者中只要有一个不是签名身份就拒绝
	m.Senders = append([]instruction.TransferInstruction{{Address: id.Address(), Amount: 0.25, Coin: "sol"}}, m.Senders...)
	_, err = b.BuildTransfers(id, m)
	assert.ErrorIs(t, err, chain.ErrSignerNotSender)

	_, err = b.BuildTransfers(id, &instruction.MultisendInstruction{
		Recipients: []instruction.TransferInstruction{{Address: newAddr(), Amount: 0.1}},
	})
	assert.ErrorIs(t, err, chain.ErrSignerNotSender)
}

func TestBaseUnitOverflow(t *testing.T) {
	rpc := newFakeRPC()
	b := newTestBackend(rpc)
	id := NewIdentity(soltypes.NewAccount())
	rpc.balances[id.Address()] = 1_000_000_000

	// 2e10 SOL = 2e19 lamports，超出 uint64，不能回绕后通过余额校验
	m := instructionFor(id.Address(), 2e10, []string{newAddr()}, 2e10)

	err := b.ValidateBalances(context.Background(), m)
	var malformed *instruction.MalformedInputError
	require.True(t, errors.As(err, &malformed))

	_, err = b.BuildTransfers(id, m)
	assert.True(t, errors.As(err, &malformed))
}

// recipientsOf 从已签名交易中按指令顺序还原转账目标
func recipientsOf(tx soltypes.Transaction) []string {
	out := make([]string, 0, len(tx.Message.Instructions))
	for _, ci := range tx.Message.Instructions {
		out = append(out, tx.Message.Accounts[ci.Accounts[1]].ToBase58())
	}
	return out
}

func TestSubmit_Chunking(t *testing.T) {
	for _, n := range []int{1, 19, 20, 21, 45, 60} {
		rpc := newFakeRPC()
		b := newTestBackend(rpc)
		id := NewIdentity(soltypes.NewAccount())

		recipients := make([]string, n)
		for i := range recipients {
			recipients[i] = newAddr()
		}
		ops, err := b.BuildTransfers(id, instructionFor(id.Address(), 0, recipients, 0.001))
		require.NoError(t, err)

		receipt, err := b.Submit(context.Background(), id, ops)
		require.NoError(t, err)

		wantChunks := (n + 19) / 20
		require.Len(t, rpc.sent, wantChunks, "n=%d", n)
		assert.Len(t, receipt.Signatures, wantChunks)
		assert.Equal(t, n, receipt.Transfers)

		var got []string
		for _, tx := range rpc.sent {
			assert.LessOrEqual(t, len(tx.Message.Instructions), 20)
			got = append(got, recipientsOf(tx)...)
		}
		assert.Equal(t, recipients, got, "n=%d", n)
	}
}

func TestSubmit_StopsAtFailedChunk(t *testing.T) {
	rpc := newFakeRPC()
	rpc.sendErrAt[1] = errors.New("blockhash not found")
	b := newTestBackend(rpc)
	id := NewIdentity(soltypes.NewAccount())

	recipients := make([]string, 50)
	for i := range recipients {
		recipients[i] = newAddr()
	}
	ops, err := b.BuildTransfers(id, instructionFor(id.Address(), 0, recipients, 0.001))
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), id, ops)
	var subErr *chain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, 1, subErr.ChunkIndex)
	assert.Equal(t, 3, subErr.TotalChunks)
	assert.True(t, subErr.Partial())
	assert.Equal(t, []string{sigName(0)}, subErr.Confirmed)
	assert.Empty(t, subErr.Pending)
	assert.Contains(t, subErr.Error(), "PARTIAL COMPLETION")

	// 第三块从未发送
	assert.Len(t, rpc.sent, 1)
}

func TestSubmit_OnChainFailure(t *testing.T) {
	rpc := newFakeRPC()
	rpc.failedSig[sigName(0)] = true
	b := newTestBackend(rpc)
	id := NewIdentity(soltypes.NewAccount())

	ops, err := b.BuildTransfers(id, instructionFor(id.Address(), 0, []string{newAddr()}, 0.001))
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), id, ops)
	var subErr *chain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, 0, subErr.ChunkIndex)
	assert.False(t, subErr.Partial())
	assert.Equal(t, sigName(0), subErr.Pending)
}

func TestSubmit_ConfirmTimeout(t *testing.T) {
	rpc := newFakeRPC()
	rpc.unconfirmed = true
	b := newTestBackend(rpc)
	id := NewIdentity(soltypes.NewAccount())

	ops, err := b.BuildTransfers(id, instructionFor(id.Address(), 0, []string{newAddr()}, 0.001))
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), id, ops)
	var subErr *chain.SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.ErrorIs(t, err, errConfirmTimeout)
}

func TestDeriveIdentity(t *testing.T) {
	b := newTestBackend(newFakeRPC())

	a, err := b.DeriveIdentity([]byte(testMnemonic), "")
	require.NoError(t, err)
	again, err := b.DeriveIdentity([]byte("  "+testMnemonic+"\n"), "0/0")
	require.NoError(t, err)
	assert.Equal(t, a.Address(), again.Address())

	other, err := b.DeriveIdentity([]byte(testMnemonic), "1/0")
	require.NoError(t, err)
	assert.NotEqual(t, a.Address(), other.Address())

	_, err = b.DeriveIdentity([]byte("not a valid phrase"), "")
	assert.Error(t, err)

	ident := a.(*Identity)
	a.Zero()
	for _, v := range ident.account.PrivateKey {
		require.Zero(t, v)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                 "m/44'/501'/0'/0'",
		"0/0":              "m/44'/501'/0'/0'",
		"3":                "m/44'/501'/3'",
		"1'/2'":            "m/44'/501'/1'/2'",
		"m/44'/501'/7'/0'": "m/44'/501'/7'/0'",
	}
	for in, want := range cases {
		got, err := normalizePath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"a/b", "1/2/3", "/"} {
		_, err := normalizePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, "https://api.mainnet-beta.solana.com", EndpointFor("mainnet"))
	assert.Equal(t, "https://api.devnet.solana.com", EndpointFor("devnet"))
	assert.Equal(t, "https://api.devnet.solana.com", EndpointFor("testnet"))
}
