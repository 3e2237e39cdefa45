package svc

import (
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multisend/internal/config"
	"multisend/internal/logic/chain"
	"multisend/internal/logic/chain/solana"
	"multisend/internal/logic/chain/terra"
)

func defaultConfig(t *testing.T) config.Config {
	t.Helper()
	c, err := config.Load("")
	require.NoError(t, err)
	return *c
}

func TestNewServiceContext_Backends(t *testing.T) {
	c := defaultConfig(t)

	ctx, err := NewServiceContext(c, Params{Chain: "solana", Network: "mainnet"})
	require.NoError(t, err)
	defer ctx.Close()
	sb, ok := ctx.Backend.(*solana.Backend)
	require.True(t, ok)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", sb.Endpoint())
	assert.Len(t, ctx.PipelineOptions(), 1)

	ctx, err = NewServiceContext(c, Params{Chain: "terra", Network: "whatever"})
	require.NoError(t, err)
	defer ctx.Close()
	tb, ok := ctx.Backend.(*terra.Backend)
	require.True(t, ok)
	assert.Equal(t, "devnet", ctx.Network)
	assert.Equal(t, "pisco-1", tb.ChainID())
}

func TestNewServiceContext_UnknownChain(t *testing.T) {
	_, err := NewServiceContext(defaultConfig(t), Params{Chain: "ethereum", Network: "devnet"})
	assert.True(t, errors.Is(err, chain.ErrUnknownChain))
}

func TestNewServiceContext_BadGas(t *testing.T) {
	_, err := NewServiceContext(defaultConfig(t), Params{
		Chain:   "terra",
		Network: "devnet",
		Terra:   config.TerraTxParams{GasPrice: "0.015uluna", GasAdjustment: -2},
	})
	assert.Error(t, err)
}

func TestNewServiceContext_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := defaultConfig(t)
	c.RedisConf.Addr = mr.Addr()

	ctx, err := NewServiceContext(c, Params{Chain: "solana", Network: "devnet"})
	require.NoError(t, err)
	defer ctx.Close()
	assert.NotNil(t, ctx.Locker)
	assert.Len(t, ctx.PipelineOptions(), 2)

	mr.Close()
	c.RedisConf.Addr = mr.Addr()
	_, err = NewServiceContext(c, Params{Chain: "solana", Network: "devnet"})
	assert.Error(t, err)
}
