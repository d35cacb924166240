package gateway

import (
	"fmt"

	"rentescrow/internal/config"
)

// BankCodes maps normalised bank names to the gateway's bank codes.
type BankCodes map[string]string

// Lookup returns the gateway code for a bank name.
func (b BankCodes) Lookup(bankName string) (string, error) {
	code, ok := b[config.NormalizeBankName(bankName)]
	if !ok || code == "" {
		return "", fmt.Errorf("%w: %q", ErrUnmappedBankCode, bankName)
	}
	return code, nil
}
