package ports

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/tdex-network/tdex-stealth/internal/core/domain"
)

// Operation is a signed funds movement included in a bundle.
type Operation struct {
	HopIndex  int
	From      string
	To        string
	Amount    uint64
	Fee       uint64
	PublicKey []byte
	Signature []byte
}

// Digest returns the hash committed to by the signature of the operation.
// The bundle id is included so that a signature cannot be replayed in a
// different bundle.
func (o Operation) Digest(bundleID string) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, []byte(bundleID)...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(o.HopIndex))
	buf = append(buf, []byte(o.From)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(o.To)...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, o.Amount)
	buf = binary.BigEndian.AppendUint64(buf, o.Fee)
	digest := sha256.Sum256(buf)
	return digest[:]
}

// Bundle is a set of operations the relay applies all or none.
type Bundle struct {
	ID         string
	Operations []Operation
}

// HopIndexes returns the indexes of the hops included in the bundle.
func (b Bundle) HopIndexes() []int {
	indexes := make([]int, 0, len(b.Operations))
	for _, op := range b.Operations {
		indexes = append(indexes, op.HopIndex)
	}
	return indexes
}

// SubmitResponse is the relay verdict for a submitted bundle.
type SubmitResponse struct {
	BundleID string
	Response domain.RelayResponse
	Reason   string
}

// BundleStatus is the confirmation status of a bundle.
type BundleStatus struct {
	BundleID          string
	Status            domain.ConfirmationStatus
	AppliedOperations int
}
