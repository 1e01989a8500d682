package stealth

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/vulpemventures/go-elements/network"
	"github.com/vulpemventures/go-elements/payment"
)

var (
	// ErrInvalidPath is the root of every error returned for a malformed or
	// out of range derivation path.
	ErrInvalidPath = errors.New("invalid derivation path")
	// ErrInvalidSeed is returned if the seed material fails the format checks.
	ErrInvalidSeed = errors.New("invalid seed")

	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = fmt.Errorf("%w: path must not be null", ErrInvalidPath)
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = fmt.Errorf(
		"%w: path must not start or end with a '/' and "+
			"can optionally start with 'm/' for absolute paths", ErrInvalidPath,
	)
	// ErrInvalidDerivationPathLength ...
	ErrInvalidDerivationPathLength = fmt.Errorf(
		"%w: path must be a relative path in the form \"account'/branch/index\"",
		ErrInvalidPath,
	)
	// ErrInvalidDerivationPathAccount ...
	ErrInvalidDerivationPathAccount = fmt.Errorf(
		"%w: account (first elem) must be hardened (suffix \"'\")", ErrInvalidPath,
	)
	// ErrHardenedDerivationPathIndex ...
	ErrHardenedDerivationPathIndex = fmt.Errorf(
		"%w: branch and index must not be hardened", ErrInvalidPath,
	)
	// ErrInvalidBasePath ...
	ErrInvalidBasePath = fmt.Errorf(
		"%w: base path elements must all be hardened", ErrInvalidPath,
	)
	// ErrOutOfRangeAccount ...
	ErrOutOfRangeAccount = fmt.Errorf(
		"%w: account must be in range [0, %d]", ErrInvalidPath, MaxHardenedValue,
	)
	// ErrOutOfRangeIndex ...
	ErrOutOfRangeIndex = fmt.Errorf(
		"%w: index must be in range [0, %d]", ErrInvalidPath, MaxIndex,
	)

	// ErrNullSeed ...
	ErrNullSeed = fmt.Errorf("%w: seed must not be null", ErrInvalidSeed)
	// ErrInvalidSeedLength ...
	ErrInvalidSeedLength = fmt.Errorf(
		"%w: seed length must be in range [%d, %d] bytes",
		ErrInvalidSeed, hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes,
	)
	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = fmt.Errorf("%w: mnemonic checksum mismatch", ErrInvalidSeed)
)

// Deriver derives one-time addresses from a master seed. It holds no secret
// material, the seed is given for the duration of every single call.
type Deriver struct {
	network  *network.Network
	basePath DerivationPath
}

// NewDeriverOpts is the struct given to the NewDeriver method
type NewDeriverOpts struct {
	Network  *network.Network
	BasePath DerivationPath
}

func (o NewDeriverOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	for _, step := range o.BasePath {
		if step < hdkeychain.HardenedKeyStart {
			return ErrInvalidBasePath
		}
	}
	return nil
}

// NewDeriver returns a Deriver encoding addresses for the given network. The
// base path defaults to DefaultBasePath.
func NewDeriver(opts NewDeriverOpts) (*Deriver, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	basePath := opts.BasePath
	if len(basePath) <= 0 {
		basePath = DefaultBasePath
	}
	return &Deriver{
		network:  opts.Network,
		basePath: append(DerivationPath{}, basePath...),
	}, nil
}

// Network returns the network addresses are encoded for.
func (d *Deriver) Network() *network.Network {
	return d.network
}

// Derive returns the stealth key identified by the given relative path in the
// tree of the given seed. The same (seed, path) pair always leads to the same
// key.
func (d *Deriver) Derive(seed []byte, path DerivationPath) (*Key, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}
	if err := checkDerivationPath(path); err != nil {
		return nil, err
	}

	hdNode, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		if errors.Is(err, hdkeychain.ErrUnusableSeed) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSeed, err)
		}
		return nil, err
	}

	fullPath := append(append(DerivationPath{}, d.basePath...), path...)
	for _, step := range fullPath {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, err)
		}
	}

	privateKey, err := hdNode.ECPrivKey()
	if err != nil {
		return nil, err
	}

	addr, err := payment.FromPublicKey(
		privateKey.PubKey(), d.network, nil,
	).WitnessPubKeyHash()
	if err != nil {
		return nil, err
	}

	return &Key{
		Address:    addr,
		Path:       append(DerivationPath{}, path...),
		privateKey: privateKey,
	}, nil
}

// DeriveAddress is a shorthand for Derive that returns only the address.
func (d *Deriver) DeriveAddress(seed []byte, path DerivationPath) (string, error) {
	key, err := d.Derive(seed, path)
	if err != nil {
		return "", err
	}
	return key.Address, nil
}

func validateSeed(seed []byte) error {
	if len(seed) <= 0 {
		return ErrNullSeed
	}
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return ErrInvalidSeedLength
	}
	return nil
}
