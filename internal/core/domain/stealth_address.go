package domain

// StealthAddress is a one-time address derived for a single transfer.
type StealthAddress struct {
	Address        string
	DerivationPath string
	// CreatedAtIndex is the path index allocated for the address.
	CreatedAtIndex uint32
}
