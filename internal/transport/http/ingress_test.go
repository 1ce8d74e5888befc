package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionPayload_Array(t *testing.T) {
	raw := []byte(`[
		{"asset": "BTC", "action": "buy", "source": "bot", "reason": "dip", "reference_price": 64000.5, "confidence": 0.8},
		{"asset": "ETH", "action": "hold"}
	]`)

	inputs, err := ParseDecisionPayload(raw)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "BTC", inputs[0].Asset)
	assert.Equal(t, "buy", inputs[0].Action)
	assert.Equal(t, "bot", inputs[0].Source)
	require.NotNil(t, inputs[0].ReferencePrice)
	assert.InDelta(t, 64000.5, *inputs[0].ReferencePrice, 1e-9)
	require.NotNil(t, inputs[0].Confidence)
	assert.InDelta(t, 0.8, *inputs[0].Confidence, 1e-9)
	assert.Nil(t, inputs[1].ReferencePrice)
}

func TestParseDecisionPayload_WrappedArray(t *testing.T) {
	raw := []byte(`{"decisions": [{"asset": "BTC", "action": "sell", "horizon_days": 7}]}`)

	inputs, err := ParseDecisionPayload(raw)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.NotNil(t, inputs[0].HorizonDays)
	assert.Equal(t, 7, *inputs[0].HorizonDays)
}

func TestParseDecisionPayload_SingleObject(t *testing.T) {
	raw := []byte(`{"asset": "BTC", "action": "buy", "meta": {"note": "manual"}}`)

	inputs, err := ParseDecisionPayload(raw)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "manual", inputs[0].Meta["note"])
}

func TestParseDecisionPayload_MapKeyedByAsset(t *testing.T) {
	raw := []byte(`{
		"BTC": {"action": "buy", "reason": "oversold"},
		"ETH": {"action": "hold"}
	}`)

	inputs, err := ParseDecisionPayload(raw)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assets := []string{inputs[0].Asset, inputs[1].Asset}
	assert.ElementsMatch(t, []string{"BTC", "ETH"}, assets)
}

func TestParseDecisionPayload_Rejections(t *testing.T) {
	cases := map[string]string{
		"empty body":          ``,
		"invalid json":        `{`,
		"scalar root":         `42`,
		"missing action":      `{"asset": "BTC"}`,
		"missing asset":       `[{"action": "buy"}]`,
		"bad reference price": `[{"asset": "BTC", "action": "buy", "reference_price": -5}]`,
		"bad confidence":      `[{"asset": "BTC", "action": "buy", "confidence": 1.5}]`,
		"bad horizon":         `[{"asset": "BTC", "action": "buy", "horizon_days": 0}]`,
		"non-object decision": `{"decisions": [42]}`,
		"non-object map item": `{"BTC": "buy"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDecisionPayload([]byte(raw))
			assert.Error(t, err)
		})
	}
}
