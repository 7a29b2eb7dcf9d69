package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the static role-to-pattern table plus the resource and action
// universes used for wildcard expansion. It is loaded once at startup and
// treated as immutable; the resolver copies it at construction.
type Config struct {
	Resources []string             `yaml:"resources"`
	Actions   []string             `yaml:"actions"`
	Roles     map[string][]Pattern `yaml:"roles"`
}

// DefaultConfig returns the built-in role table
func DefaultConfig() Config {
	return Config{
		Resources: []string{
			"users", "products", "inventory", "orders",
			"invoices", "contacts", "organizations", "payments",
		},
		Actions: []string{"view", "edit", "create", "delete"},
		Roles: map[string][]Pattern{
			// Admin is short-circuited by Grants; the patterns here only
			// feed the effective-permissions listing.
			"Admin": {
				"users.*", "products.*", "inventory.*", "orders.*",
				"invoices.*", "contacts.*", "organizations.*",
			},
			"Sales": {
				"*.view", "orders.*", "contacts.*", "organizations.*",
			},
			"Operations": {
				"*.view", "inventory.*", "products.view", "orders.view", "orders.edit",
			},
			"Accounts": {
				"*.view", "invoices.*", "payments.*",
			},
		},
	}
}

// LoadConfig reads a role table from a YAML file. An empty path returns the
// built-in table.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read rbac config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse rbac config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks the config is usable for expansion
func (c Config) Validate() error {
	if len(c.Resources) == 0 {
		return fmt.Errorf("rbac config: resources must not be empty")
	}
	if len(c.Actions) == 0 {
		return fmt.Errorf("rbac config: actions must not be empty")
	}
	for name := range c.Roles {
		if name == "" {
			return fmt.Errorf("rbac config: role with empty name")
		}
	}
	return nil
}

// clone deep-copies the config so callers cannot mutate the resolver's view
func (c Config) clone() Config {
	out := Config{
		Resources: append([]string(nil), c.Resources...),
		Actions:   append([]string(nil), c.Actions...),
		Roles:     make(map[string][]Pattern, len(c.Roles)),
	}
	for name, patterns := range c.Roles {
		out.Roles[name] = append([]Pattern(nil), patterns...)
	}
	return out
}
