package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chargeBody struct {
	CustomerID         string  `json:"customerId"`
	Amount             int64   `json:"amount"`
	Currency           string  `json:"currency"`
	PaymentMethodToken string  `json:"paymentMethodToken"`
	Description        *string `json:"description,omitempty"`
}

func TestJSON_SortsKeys(t *testing.T) {
	got, err := JSON(map[string]any{"b": 1, "a": 2, "c": []any{map[string]any{"z": true, "y": nil}}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":[{"y":null,"z":true}]}`, string(got))
}

func TestJSON_NoInsignificantWhitespace(t *testing.T) {
	got, err := JSON(chargeBody{CustomerID: "c1", Amount: 100, Currency: "PLN", PaymentMethodToken: "pm_1"})
	require.NoError(t, err)
	assert.NotContains(t, string(got), " ")
	assert.NotContains(t, string(got), "\n")
}

func TestHash_Deterministic(t *testing.T) {
	body := chargeBody{CustomerID: "c1", Amount: 100, Currency: "PLN", PaymentMethodToken: "pm_1"}

	h1, err := Hash(body)
	require.NoError(t, err)
	h2, err := Hash(body)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	// Same logical content via a differently-ordered map hashes identically.
	h3, err := Hash(map[string]any{
		"paymentMethodToken": "pm_1",
		"amount":             int64(100),
		"customerId":         "c1",
		"currency":           "PLN",
	})
	require.NoError(t, err)
	assert.Equal(t, h1, h3)
}

func TestHash_DiffersOnContent(t *testing.T) {
	a, err := Hash(chargeBody{CustomerID: "c1", Amount: 100, Currency: "PLN", PaymentMethodToken: "pm_1"})
	require.NoError(t, err)
	b, err := Hash(chargeBody{CustomerID: "c1", Amount: 200, Currency: "PLN", PaymentMethodToken: "pm_1"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHash_NumberPrecision(t *testing.T) {
	// json.Number keeps the literal form; large amounts survive untouched.
	got, err := JSON(map[string]any{"amount": int64(9007199254740993)})
	require.NoError(t, err)
	assert.Equal(t, `{"amount":9007199254740993}`, string(got))
}
