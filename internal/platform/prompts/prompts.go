package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every prompt template the activities use. Loaded once at
// process start and passed by reference; nothing in this package is cached
// at module level.
type Config struct {
	// Exactly two variants so a generation pass always yields two options.
	GenerationVariants []string `yaml:"generation_variants"`
	AnnotationEdit     string   `yaml:"annotation_edit"`
	FeedbackEdit       string   `yaml:"feedback_edit"`
	ShoppingExtract    string   `yaml:"shopping_extract"`
}

// Load reads templates from a YAML file, filling gaps from Defaults. An
// empty path returns Defaults unchanged.
func Load(path string) (*Config, error) {
	def := Defaults()
	path = strings.TrimSpace(path)
	if path == "" {
		return def, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("prompts: parse %s: %w", path, err)
	}
	if len(cfg.GenerationVariants) == 0 {
		cfg.GenerationVariants = def.GenerationVariants
	}
	if len(cfg.GenerationVariants) != 2 {
		return nil, fmt.Errorf("prompts: generation_variants must have exactly 2 entries, got %d", len(cfg.GenerationVariants))
	}
	if cfg.AnnotationEdit == "" {
		cfg.AnnotationEdit = def.AnnotationEdit
	}
	if cfg.FeedbackEdit == "" {
		cfg.FeedbackEdit = def.FeedbackEdit
	}
	if cfg.ShoppingExtract == "" {
		cfg.ShoppingExtract = def.ShoppingExtract
	}
	return &cfg, nil
}

func Defaults() *Config {
	return &Config{
		GenerationVariants: []string{
			"Redesign this room to match the brief. Stay faithful to the room's architecture, windows and layout. Brief: %s",
			"Propose a bolder take on this room for the same brief. Keep the architecture intact but push the styling further. Brief: %s",
		},
		AnnotationEdit:  "Apply these region edits to the current design. Regions are normalized x/y/w/h rectangles. Edits: %s",
		FeedbackEdit:    "Revise the current design per this feedback: %s",
		ShoppingExtract: "List every purchasable furnishing and decor item visible in the final design. For each, give a name, a category and an approximate size. Brief for context: %s",
	}
}
