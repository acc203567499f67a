package vault

import (
	"testing"

	"tidy-go/internal/tidy"
)

func TestMemoryVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) tidy.Vault {
		return NewMemoryVault("mem")
	})
}
