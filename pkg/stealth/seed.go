package stealth

import (
	"strings"

	"github.com/vulpemventures/go-bip39"
)

// SeedFromMnemonic validates the checksum of the given BIP39 mnemonic and
// returns the corresponding seed.
func SeedFromMnemonic(mnemonic string) ([]byte, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if len(mnemonic) <= 0 {
		return nil, ErrNullSeed
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// NewMnemonic returns a new 24 words mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}
