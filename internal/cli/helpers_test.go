package cli

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o700))
}
