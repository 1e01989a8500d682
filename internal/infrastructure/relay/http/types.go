// Package httprelay implements the JSON over HTTP protocol of the private
// relay, both the client side used by the engine and the server side used to
// expose a relay, like the simulated one, to other processes.
package httprelay

import (
	"encoding/hex"
	"fmt"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

const (
	bundlesPath  = "/v1/bundles"
	balancesPath = "/v1/balances"
)

// Error codes returned by the relay for bundles it refuses.
const (
	codeInsufficientFunds = "insufficient_funds"
	codeSignatureFailed   = "signature_failed"
	codeInvalidBundle     = "invalid_bundle"
	codeInternal          = "internal"
)

var codeToError = map[string]error{
	codeInsufficientFunds: domain.ErrInsufficientFunds,
	codeSignatureFailed:   domain.ErrSignatureFailed,
	codeInvalidBundle:     domain.ErrInvalidBundle,
}

type operationJSON struct {
	HopIndex  int    `json:"hop_index"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Fee       uint64 `json:"fee"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

type bundleJSON struct {
	ID         string          `json:"bundle_id"`
	Operations []operationJSON `json:"operations"`
}

type submitResponseJSON struct {
	BundleID string `json:"bundle_id"`
	Response string `json:"response"`
	Reason   string `json:"reason,omitempty"`
}

type bundleStatusJSON struct {
	BundleID          string `json:"bundle_id"`
	Status            string `json:"status"`
	AppliedOperations int    `json:"applied_operations"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type errorJSON struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newBundleJSON(b ports.Bundle) bundleJSON {
	ops := make([]operationJSON, 0, len(b.Operations))
	for _, op := range b.Operations {
		ops = append(ops, operationJSON{
			HopIndex:  op.HopIndex,
			From:      op.From,
			To:        op.To,
			Amount:    op.Amount,
			Fee:       op.Fee,
			PublicKey: hex.EncodeToString(op.PublicKey),
			Signature: hex.EncodeToString(op.Signature),
		})
	}
	return bundleJSON{b.ID, ops}
}

func (b bundleJSON) toBundle() (*ports.Bundle, error) {
	ops := make([]ports.Operation, 0, len(b.Operations))
	for _, op := range b.Operations {
		pubkey, err := hex.DecodeString(op.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid public key format for operation %d", op.HopIndex)
		}
		sig, err := hex.DecodeString(op.Signature)
		if err != nil {
			return nil, fmt.Errorf("invalid signature format for operation %d", op.HopIndex)
		}
		ops = append(ops, ports.Operation{
			HopIndex:  op.HopIndex,
			From:      op.From,
			To:        op.To,
			Amount:    op.Amount,
			Fee:       op.Fee,
			PublicKey: pubkey,
			Signature: sig,
		})
	}
	return &ports.Bundle{ID: b.ID, Operations: ops}, nil
}

func parseRelayResponse(str string) domain.RelayResponse {
	for _, r := range []domain.RelayResponse{
		domain.RelayResponseAccepted,
		domain.RelayResponseRejected,
		domain.RelayResponseTimeout,
		domain.RelayResponsePartial,
		domain.RelayResponseError,
	} {
		if r.String() == str {
			return r
		}
	}
	return domain.RelayResponseUnknown
}

func parseConfirmationStatus(str string) domain.ConfirmationStatus {
	for _, s := range []domain.ConfirmationStatus{
		domain.ConfirmationPending,
		domain.ConfirmationLanded,
		domain.ConfirmationFailed,
		domain.ConfirmationDropped,
		domain.ConfirmationPartial,
	} {
		if s.String() == str {
			return s
		}
	}
	return domain.ConfirmationUnknown
}
