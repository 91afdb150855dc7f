// Package protocol defines the peer-to-peer wire messages and their
// strict JSON encoding. Amounts travel as strings so heterogeneous peer
// implementations never disagree on numeric precision or locale.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

const ActionTransfer = "transfer"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Decode errors. Their text is sent verbatim in the error response, so
// keep it peer-readable.
var (
	ErrInvalidJSON       = errors.New("invalid JSON format")
	ErrUnknownAction     = errors.New("unknown action")
	ErrMissingField      = errors.New("missing 'amount' or 'sender_address'")
	ErrInvalidAmount     = errors.New("invalid amount format")
	ErrNonPositiveAmount = errors.New("invalid amount (must be positive)")
)

// TransferRequest is the single request shape on the wire.
type TransferRequest struct {
	Action        string `json:"action"`
	Amount        string `json:"amount"`
	SenderAddress string `json:"sender_address"`
}

// TransferResponse is the single response shape on the wire.
type TransferResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Transfer is a decoded, validated transfer request.
type Transfer struct {
	Amount        decimal.Decimal
	SenderAddress string
}

// EncodeRequest builds the wire form of a transfer request.
func EncodeRequest(amount decimal.Decimal, senderAddress string) ([]byte, error) {
	return json.Marshal(TransferRequest{
		Action:        ActionTransfer,
		Amount:        amount.String(),
		SenderAddress: senderAddress,
	})
}

// DecodeRequest strictly decodes and validates a transfer request.
// Unknown fields are ignored; anything else wrong yields one of the
// typed decode errors and never a panic.
func DecodeRequest(raw []byte) (Transfer, error) {
	var req TransferRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return Transfer{}, ErrInvalidJSON
	}
	if req.Action != ActionTransfer {
		return Transfer{}, ErrUnknownAction
	}
	if req.Amount == "" || req.SenderAddress == "" {
		return Transfer{}, ErrMissingField
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return Transfer{}, ErrInvalidAmount
	}
	if amount.Sign() <= 0 {
		return Transfer{}, ErrNonPositiveAmount
	}
	return Transfer{Amount: amount, SenderAddress: req.SenderAddress}, nil
}

// EncodeResponse builds the wire form of a status/message reply.
func EncodeResponse(status, message string) []byte {
	data, _ := json.Marshal(TransferResponse{Status: status, Message: message})
	return data
}

// DecodeResponse parses a peer's reply.
func DecodeResponse(raw []byte) (TransferResponse, error) {
	var resp TransferResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return TransferResponse{}, ErrInvalidJSON
	}
	if resp.Status != StatusSuccess && resp.Status != StatusError {
		return TransferResponse{}, ErrInvalidJSON
	}
	return resp, nil
}

// Complete reports whether raw looks like a finished message. The
// protocol has no length prefix; a message is complete once the
// trimmed payload ends with a closing brace.
func Complete(raw []byte) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[len(t)-1] == '}'
}
