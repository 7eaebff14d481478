package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadPolicyFile tests the YAML policy loader.
func TestLoadPolicyFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrPolicyNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, ErrPolicyNotFound) {
			t.Errorf("expected ErrPolicyNotFound, got %v", err)
		}
	})

	t.Run("invalid YAML returns an error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("max_depth: [not a number"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadPolicyFile(path); err == nil {
			t.Error("expected an error for invalid YAML")
		}
	})

	t.Run("set fields override, unset fields keep defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultPolicyFile)
		policy := `
max_depth: 3
excluded_groups:
  - "Everyone"
ignored_levels: []
`
		if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
			t.Fatal(err)
		}

		p, err := LoadPolicyFile(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		cfg := NewConfig()
		p.Apply(cfg)

		if cfg.MaxDepth != 3 {
			t.Errorf("expected MaxDepth 3, got %d", cfg.MaxDepth)
		}
		if len(cfg.ExcludedGroups) != 1 || cfg.ExcludedGroups[0] != "Everyone" {
			t.Errorf("expected excluded groups replaced, got %v", cfg.ExcludedGroups)
		}
		// An explicitly empty list disables the default filtering.
		if len(cfg.IgnoredLevels) != 0 {
			t.Errorf("expected empty IgnoredLevels, got %v", cfg.IgnoredLevels)
		}
		// Untouched fields keep their defaults.
		if cfg.PageSize != DefaultPageSize {
			t.Errorf("expected default PageSize, got %d", cfg.PageSize)
		}
	})
}

// TestFindPolicyFile tests the search order for the policy file.
func TestFindPolicyFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned as-is", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "policy.yaml")
		if err := os.WriteFile(path, []byte("max_depth: 2"), 0o600); err != nil {
			t.Fatal(err)
		}

		if got := FindPolicyFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit missing path returns empty", func(t *testing.T) {
		t.Parallel()

		if got := FindPolicyFile(filepath.Join(t.TempDir(), "absent")); got != "" {
			t.Errorf("expected empty path, got %s", got)
		}
	})
}
