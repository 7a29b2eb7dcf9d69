package rbac

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigEmptyPathUsesDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)
	assert.Contains(t, config.Roles, "Sales")
	assert.Contains(t, config.Resources, "orders")
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
resources: [users, orders]
actions: [view, edit]
roles:
  Support:
    - "*.view"
    - "orders.edit"
`), 0o600))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	resolver := newTestResolver(t, config)
	assert.True(t, resolver.Grants("Support", "users.view"))
	assert.True(t, resolver.Grants("Support", "orders.edit"))
	assert.False(t, resolver.Grants("Support", "users.edit"))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles: {}\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err, "empty universes are rejected")
}
