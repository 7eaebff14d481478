package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultPolicyFile is the default policy file name.
const DefaultPolicyFile = ".permscan"

// ErrPolicyNotFound is returned when the policy file does not exist.
// Callers decide whether that matters based on whether the path was
// explicitly specified.
var ErrPolicyNotFound = errors.New("policy file not found")

// Policy is the YAML policy file shape. Every field is optional; set
// fields override the corresponding Config value, unset fields leave
// the default in place. Exclusion lists replace the defaults rather
// than appending, so a site can opt back in to scanning a default
// exclusion.
type Policy struct {
	// MaxDepth overrides the group-nesting depth limit.
	MaxDepth *int `yaml:"max_depth"`

	// PageSize overrides the item listing page size.
	PageSize *int `yaml:"page_size"`

	// IncludeSubsites overrides subsite recursion.
	IncludeSubsites *bool `yaml:"include_subsites"`

	// ExcludedGroups replaces the never-expand principal list.
	ExcludedGroups []string `yaml:"excluded_groups"`

	// ExcludedContainers replaces the skipped container list.
	ExcludedContainers []string `yaml:"excluded_containers"`

	// IgnoredLevels replaces the filtered permission levels.
	IgnoredLevels []string `yaml:"ignored_levels"`

	// IgnoredAccounts replaces the filtered system accounts.
	IgnoredAccounts []string `yaml:"ignored_accounts"`
}

// LoadPolicyFile loads a scan policy from a YAML file. If the file
// does not exist it returns ErrPolicyNotFound.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided policy path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPolicyNotFound
		}
		return nil, err
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Apply merges the policy into the configuration. Only set fields
// override.
func (p *Policy) Apply(cfg *Config) {
	if p.MaxDepth != nil {
		cfg.MaxDepth = *p.MaxDepth
	}
	if p.PageSize != nil {
		cfg.PageSize = *p.PageSize
	}
	if p.IncludeSubsites != nil {
		cfg.IncludeSubsites = *p.IncludeSubsites
	}
	if p.ExcludedGroups != nil {
		cfg.ExcludedGroups = p.ExcludedGroups
	}
	if p.ExcludedContainers != nil {
		cfg.ExcludedContainers = p.ExcludedContainers
	}
	if p.IgnoredLevels != nil {
		cfg.IgnoredLevels = p.IgnoredLevels
	}
	if p.IgnoredAccounts != nil {
		cfg.IgnoredAccounts = p.IgnoredAccounts
	}
}

// FindPolicyFile searches for the policy file:
//  1. an explicitly specified path, used as-is
//  2. .permscan in the current directory
//  3. .permscan in the user's home directory
//
// Returns the path if found, or empty string.
func FindPolicyFile(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultPolicyFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, DefaultPolicyFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
