package extractor

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/tablegest/internal/richtext"
	"github.com/dgallion1/tablegest/internal/section"
)

// Config selects which markup survives in cell values and context blocks.
type Config struct {
	IgnoredTags        []string      `yaml:"ignored_tags"`
	DiscardTags        []string      `yaml:"discard_tags"`
	KeepTags           []string      `yaml:"keep_tags"`
	OnlyKeepInlineTags bool          `yaml:"only_keep_inline_tags"`
	Context            ContextConfig `yaml:"context"`
}

type ContextConfig struct {
	HeadingTags        []string `yaml:"heading_tags"`
	IgnoredTags        []string `yaml:"ignored_tags"`
	DiscardTags        []string `yaml:"discard_tags"`
	KeepTags           []string `yaml:"keep_tags"`
	OnlyKeepInlineTags bool     `yaml:"only_keep_inline_tags"`
}

func DefaultConfig() Config {
	return Config{
		IgnoredTags:        []string{"div"},
		DiscardTags:        []string{"script", "style", "noscript", "table"},
		OnlyKeepInlineTags: true,
		Context: ContextConfig{
			HeadingTags:        []string{"h1", "h2", "h3", "h4", "h5", "h6"},
			DiscardTags:        []string{"script", "style", "noscript", "table"},
			OnlyKeepInlineTags: true,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read extractor config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse extractor config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that heading_tags names each level once. The position of a
// tag in the list is its heading level.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Context.HeadingTags))
	for i, tag := range c.Context.HeadingTags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			return fmt.Errorf("context.heading_tags[%d] is empty", i)
		}
		if seen[tag] {
			return fmt.Errorf("context.heading_tags lists %q twice", tag)
		}
		seen[tag] = true
	}
	return nil
}

func (c Config) textOptions() richtext.Options {
	return richtext.Options{
		IgnoredTags: richtext.TagSet(c.IgnoredTags...),
		DiscardTags: richtext.TagSet(c.DiscardTags...),
		KeepTags:    richtext.TagSet(c.KeepTags...),
		OnlyInline:  c.OnlyKeepInlineTags,
	}
}

func (c Config) contextOptions() section.Options {
	return section.Options{
		HeadingTags: c.Context.HeadingTags,
		Text: richtext.Options{
			IgnoredTags: richtext.TagSet(c.Context.IgnoredTags...),
			DiscardTags: richtext.TagSet(c.Context.DiscardTags...),
			KeepTags:    richtext.TagSet(c.Context.KeepTags...),
			OnlyInline:  c.Context.OnlyKeepInlineTags,
		},
	}
}
