package protocol

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	amounts := []string{"2.5", "0.00000001", "123456789.123456789", "1"}
	for _, a := range amounts {
		amount := decimal.RequireFromString(a)

		raw, err := EncodeRequest(amount, "LGBX_SENDER1")
		require.NoError(t, err)

		tr, err := DecodeRequest(raw)
		require.NoError(t, err)
		assert.True(t, tr.Amount.Equal(amount), "amount %s survived the round trip", a)
		assert.Equal(t, "LGBX_SENDER1", tr.SenderAddress)
	}
}

func TestDecodeRequestRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"malformed json", `{bad json`, ErrInvalidJSON},
		{"empty", ``, ErrInvalidJSON},
		{"unknown action", `{"action":"mint","amount":"1","sender_address":"A"}`, ErrUnknownAction},
		{"missing action", `{"amount":"1","sender_address":"A"}`, ErrUnknownAction},
		{"missing amount", `{"action":"transfer","sender_address":"A"}`, ErrMissingField},
		{"missing sender", `{"action":"transfer","amount":"1"}`, ErrMissingField},
		{"non-numeric amount", `{"action":"transfer","amount":"ten","sender_address":"A"}`, ErrInvalidAmount},
		{"zero amount", `{"action":"transfer","amount":"0","sender_address":"A"}`, ErrNonPositiveAmount},
		{"negative amount", `{"action":"transfer","amount":"-3","sender_address":"A"}`, ErrNonPositiveAmount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tc.raw))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeRequestIgnoresUnknownFields(t *testing.T) {
	raw := `{"action":"transfer","amount":"1.5","sender_address":"A","hops":3,"note":"hi"}`
	tr, err := DecodeRequest([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "1.5", tr.Amount.String())
}

func TestDecodeResponse(t *testing.T) {
	resp, err := DecodeResponse(EncodeResponse(StatusSuccess, "Transfer acknowledged"))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "Transfer acknowledged", resp.Message)

	_, err = DecodeResponse([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = DecodeResponse([]byte(`{"status":"maybe","message":"?"}`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestComplete(t *testing.T) {
	assert.False(t, Complete(nil))
	assert.False(t, Complete([]byte(`{"action":"transfer"`)))
	assert.True(t, Complete([]byte(`{"action":"transfer"}`)))
	assert.True(t, Complete([]byte("  {\"a\":1}\n\n")))
}
