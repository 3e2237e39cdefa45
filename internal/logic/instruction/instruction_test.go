package instruction

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup 构造只有金额的指令，地址为空
func setup(senders, recipients []float64) *MultisendInstruction {
	m := &MultisendInstruction{}
	for _, a := range senders {
		m.Senders = append(m.Senders, TransferInstruction{Amount: a, Coin: "sol"})
	}
	for _, a := range recipients {
		m.Recipients = append(m.Recipients, TransferInstruction{Amount: a, Coin: "sol"})
	}
	return m
}

func TestValidateAmountConservation(t *testing.T) {
	t.Run("balanced", func(t *testing.T) {
		err := ValidateAmountConservation(setup([]float64{0.10}, []float64{0.001, 0.02, 0.079}))
		assert.NoError(t, err)
	})

	t.Run("mismatch", func(t *testing.T) {
		err := ValidateAmountConservation(setup([]float64{0.10}, []float64{0.001, 0.02, 0.07}))
		var mismatch *AmountMismatchError
		require.True(t, errors.As(err, &mismatch))
		assert.True(t, mismatch.SenderTotal.Equal(decimal.RequireFromString("0.1")))
		assert.True(t, mismatch.RecipientTotal.Equal(decimal.RequireFromString("0.091")))
	})

	t.Run("within tolerance", func(t *testing.T) {
		err := ValidateAmountConservation(setup([]float64{1.0}, []float64{0.5, 0.49}))
		assert.NoError(t, err)
	})

	t.Run("exactly tolerance", func(t *testing.T) {
		err := ValidateAmountConservation(setup([]float64{1.0}, []float64{0.99}))
		assert.NoError(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		assert.NoError(t, ValidateAmountConservation(&MultisendInstruction{}))
	})

	t.Run("order independent", func(t *testing.T) {
		a := setup([]float64{0.3, 0.2}, []float64{0.1, 0.4})
		b := setup([]float64{0.2, 0.3}, []float64{0.4, 0.1})
		assert.Equal(t, ValidateAmountConservation(a) == nil, ValidateAmountConservation(b) == nil)
	})
}

const sampleJSON = `{
  "recipients": [
    {"address": "A1", "amount": 0.001, "coin": "sol"},
    {"address": "A2", "amount": 0.02, "coin": "sol"},
    {"address": "A3", "amount": 0.079, "coin": "sol"}
  ],
  "senders": [
    {"address": "S1", "amount": 0.1, "coin": "sol"}
  ]
}`

const sampleYAML = `
recipients:
  - address: A1
    amount: 0.001
    coin: sol
  - address: A2
    amount: 0.02
    coin: sol
  - address: A3
    amount: 0.079
    coin: sol
senders:
  - address: S1
    amount: 0.1
    coin: sol
`

func TestParse(t *testing.T) {
	fromJSON, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	require.Len(t, fromJSON.Recipients, 3)
	require.Len(t, fromJSON.Senders, 1)
	assert.Equal(t, "A2", fromJSON.Recipients[1].Address)
	assert.Equal(t, 0.079, fromJSON.Recipients[2].Amount)

	fromYAML, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "   ",
		"bad json":       `{"recipients": [}`,
		"no senders":     `{"recipients": []}`,
		"no recipients":  `{"senders": []}`,
		"missing amount": `{"recipients": [{"address": "a", "coin": "x"}], "senders": []}`,
		"missing coin":   `{"recipients": [{"address": "a", "amount": 1}], "senders": []}`,
		"string amount":  `{"recipients": [{"address": "a", "amount": "1", "coin": "x"}], "senders": []}`,
		"negative":       `{"recipients": [], "senders": [{"address": "a", "amount": -1, "coin": "x"}]}`,
		"zero recipient": `{"recipients": [{"address": "a", "amount": 0, "coin": "x"}], "senders": []}`,
		"yaml scalar":    "just a string",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			var malformed *MalformedInputError
			assert.True(t, errors.As(err, &malformed), "got %v", err)
		})
	}
}

func TestParse_ZeroSenderAmount(t *testing.T) {
	m, err := Parse([]byte(`{"recipients": [], "senders": [{"address": "a", "amount": 0, "coin": "x"}]}`))
	require.NoError(t, err)
	assert.Zero(t, m.Senders[0].Amount)
}

func TestMarshal_RoundTrip(t *testing.T) {
	original, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	data, err := Marshal(original)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, original, again)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Recipients, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSenderTotals(t *testing.T) {
	m := &MultisendInstruction{Senders: []TransferInstruction{
		{Address: "S1", Amount: 0.1, Coin: "sol"},
		{Address: "S2", Amount: 1, Coin: "sol"},
		{Address: "S1", Amount: 0.2, Coin: "sol"},
	}}
	totals := m.SenderTotals()
	require.Len(t, totals, 2)
	assert.Equal(t, "S1", totals[0].Address)
	assert.True(t, totals[0].Amount.Equal(decimal.RequireFromString("0.3")))
	assert.Equal(t, "S2", totals[1].Address)
}

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int32
		want     uint64
	}{
		{"0.1", 9, 100_000_000},
		{"0.079", 6, 79_000},
		{"0.0000019", 6, 1},
		{"18446744073.709551615", 9, 18446744073709551615},
	}
	for _, c := range cases {
		got, err := ToBaseUnits(decimal.RequireFromString(c.amount), c.decimals)
		require.NoError(t, err, c.amount)
		assert.Equal(t, c.want, got, c.amount)
	}

	// 超出 uint64 不能回绕成一个小数额
	for _, huge := range []float64{18446744074, 2e10} {
		_, err := ToBaseUnits(decimal.NewFromFloat(huge), 9)
		var malformed *MalformedInputError
		assert.True(t, errors.As(err, &malformed), "%v", huge)
	}
	_, err := ToBaseUnits(decimal.NewFromFloat(-1), 6)
	assert.Error(t, err)
}
