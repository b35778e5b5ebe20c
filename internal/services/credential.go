package services

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

const (
	// Well-known Azurite development account.
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// isLocal reports whether a service URL points at a local emulator.
// Emulators are served over plain http; Azure endpoints are always https.
func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

// getAzuriteCredentials returns the emulator account, overridable through
// AZURITE_ACCOUNT_NAME and AZURITE_ACCOUNT_KEY.
func getAzuriteCredentials() (string, string) {
	name := os.Getenv("AZURITE_ACCOUNT_NAME")
	if name == "" {
		name = azuriteAccountName
	}
	key := os.Getenv("AZURITE_ACCOUNT_KEY")
	if key == "" {
		key = azuriteAccountKey
	}
	return name, key
}

func newDefaultAzureCredential() (azcore.TokenCredential, error) {
	slog.Info("using default Azure credentials")
	return azidentity.NewDefaultAzureCredential(nil)
}
