package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.GenerationVariants) != 2 {
		t.Fatalf("defaults must carry exactly 2 generation variants, got %d", len(cfg.GenerationVariants))
	}
	for _, tpl := range []string{cfg.AnnotationEdit, cfg.FeedbackEdit, cfg.ShoppingExtract} {
		if !strings.Contains(tpl, "%s") {
			t.Fatalf("template missing substitution slot: %q", tpl)
		}
	}
}

func TestLoadOverridesAndFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "feedback_edit: \"Change it like this: %s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeedbackEdit != "Change it like this: %s" {
		t.Fatalf("override lost: %q", cfg.FeedbackEdit)
	}
	// Gaps are filled from defaults.
	if len(cfg.GenerationVariants) != 2 || cfg.AnnotationEdit == "" || cfg.ShoppingExtract == "" {
		t.Fatalf("defaults not filled: %+v", cfg)
	}
}

func TestLoadRejectsWrongVariantCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := "generation_variants:\n  - \"only one: %s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for 1 variant")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
