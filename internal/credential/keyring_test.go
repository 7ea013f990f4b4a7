package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersEnvironment(t *testing.T) {
	for _, env := range []string{EnvAPIToken, EnvImportToken, EnvBitbucketToken} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, "from-env-"+env)

			got, err := Resolve(env, "tracker-unused-key")
			require.NoError(t, err)
			assert.Equal(t, "from-env-"+env, got)
		})
	}
}
