package stealth

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

const (
	// MaxHardenedValue is the max value for hardened indexes of BIP32
	// derivation paths
	MaxHardenedValue = math.MaxUint32 - hdkeychain.HardenedKeyStart
	// MaxIndex is the max non-hardened value accepted for the branch and index
	// elements of a stealth derivation path.
	MaxIndex = hdkeychain.HardenedKeyStart - 1

	// StealthBranch is the branch of the account tree reserved to one-time
	// addresses.
	StealthBranch = 0
	// SpendingBranch is the branch of the account tree holding the keys the
	// wallet spends from.
	SpendingBranch = 1
)

// DerivationPath is the internal representation of a hierarchical
// deterministic path
type DerivationPath []uint32

var (
	// DefaultBasePath m/84'/1776'
	DefaultBasePath = DerivationPath{
		hdkeychain.HardenedKeyStart + 84,
		hdkeychain.HardenedKeyStart + 1776,
	}
)

// NewStealthPath returns the relative path account'/0/index used to derive
// the index-th one-time address of the given account.
func NewStealthPath(account, index uint32) (DerivationPath, error) {
	if account > MaxHardenedValue {
		return nil, ErrOutOfRangeAccount
	}
	if index > MaxIndex {
		return nil, ErrOutOfRangeIndex
	}
	return DerivationPath{
		hdkeychain.HardenedKeyStart + account, StealthBranch, index,
	}, nil
}

// NewSpendingPath returns the relative path account'/1/index of a wallet
// spending key.
func NewSpendingPath(account, index uint32) (DerivationPath, error) {
	path, err := NewStealthPath(account, index)
	if err != nil {
		return nil, err
	}
	path[1] = SpendingBranch
	return path, nil
}

// ParseDerivationPath converts a derivation path string to the
// internal binary representation
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath
	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath
	default:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}
	}

	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("%w: invalid elem '%s' in path", ErrInvalidPath, elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf(
					"%w: elem %v must be in range [0, %d]", ErrInvalidPath, bigval, max,
				)
			}
			return nil, fmt.Errorf(
				"%w: elem %v must be in hardened range [0, %d]", ErrInvalidPath, bigval, max,
			)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

// Account returns the non-hardened account number of a stealth path.
func (path DerivationPath) Account() uint32 {
	if len(path) <= 0 {
		return 0
	}
	return path[0] - hdkeychain.HardenedKeyStart
}

// Index returns the last element of the path.
func (path DerivationPath) Index() uint32 {
	if len(path) <= 0 {
		return 0
	}
	return path[len(path)-1]
}

// Equal returns whether the two paths point to the same node.
func (path DerivationPath) Equal(other DerivationPath) bool {
	if len(path) != len(other) {
		return false
	}
	for i := range path {
		if path[i] != other[i] {
			return false
		}
	}
	return true
}

func checkDerivationPath(path DerivationPath) error {
	if len(path) != 3 {
		return ErrInvalidDerivationPathLength
	}
	// first elem must be hardened!
	if path[0] < hdkeychain.HardenedKeyStart {
		return ErrInvalidDerivationPathAccount
	}
	if path[1] > MaxIndex || path[2] > MaxIndex {
		return ErrHardenedDerivationPathIndex
	}
	return nil
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}
