package stealth

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// ErrInvalidDigest ...
var ErrInvalidDigest = errors.New("digest must be a 32 byte hash")

// Key is the signing capability of a derived one-time address.
type Key struct {
	Address string
	Path    DerivationPath

	privateKey *btcec.PrivateKey
}

// PublicKey returns the compressed public key of the address.
func (k *Key) PublicKey() []byte {
	return k.privateKey.PubKey().SerializeCompressed()
}

// Sign returns the DER encoded signature of the given 32 byte digest.
func (k *Key) Sign(digest []byte) ([]byte, error) {
	if len(digest) != sha256.Size {
		return nil, ErrInvalidDigest
	}
	return ecdsa.Sign(k.privateKey, digest).Serialize(), nil
}

// Zero drops the reference to the private key.
func (k *Key) Zero() {
	if k.privateKey != nil {
		k.privateKey.Zero()
	}
}

// VerifySignature checks a DER signature made by Key.Sign.
func VerifySignature(pubkey, digest, signature []byte) bool {
	pub, err := btcec.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest, pub)
}
