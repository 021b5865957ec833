package testutil

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// SkipWithoutDocker skips container-backed tests in -short mode or when no
// container provider is reachable.
func SkipWithoutDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func failOnStartError(t *testing.T, name string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("start %s container: %v", name, err)
	}
}
