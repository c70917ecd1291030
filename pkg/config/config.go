// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads interceptor and retriever settings from a YAML
// file, overlaid with TOOLSEARCH_-prefixed environment variables, the way
// the wider application configures its own components.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix is the environment variable prefix layered over file config.
// TOOLSEARCH_MAX_TURNS=3 overrides maxTurns, and
// TOOLSEARCH_RETRIEVER_MIN_SCORE overrides retriever.minScore, for example.
const EnvPrefix = "TOOLSEARCH_"

// RetrieverConfig selects and configures a back-end.
type RetrieverConfig struct {
	// Backend selects which retriever implementation to build: "keyword",
	// "semantic", or "regex".
	Backend string `koanf:"backend"`

	// MinScore floors accepted relevance scores. Back-end-specific default
	// applies when zero.
	MinScore float64 `koanf:"minScore"`
}

// InterceptorConfig mirrors the options enumerated for the interceptor.
type InterceptorConfig struct {
	Retriever RetrieverConfig `koanf:"retriever"`

	// SystemMessageSuffix overrides the default instructional text
	// appended during loop initialization. Empty means use the default.
	SystemMessageSuffix string `koanf:"systemMessageSuffix"`

	// AccumulateDiscovered selects accumulating (true) vs. non-accumulating
	// (false) DiscoveredSet behavior.
	AccumulateDiscovered bool `koanf:"accumulateDiscovered"`

	// MaxResults caps the search tool's default result count.
	MaxResults int `koanf:"maxResults"`

	// MaxTurns bounds LLM turns per top-level request.
	MaxTurns int `koanf:"maxTurns"`

	// ToolSearchToolName overrides the reserved search-tool name.
	ToolSearchToolName string `koanf:"toolSearchToolName"`

	// LogLevel controls the shared logger's verbosity: debug, info, warn,
	// error.
	LogLevel string `koanf:"logLevel"`
}

// SetDefaults fills zero-valued fields with the spec's documented
// defaults.
func (c *InterceptorConfig) SetDefaults() {
	if c.Retriever.Backend == "" {
		c.Retriever.Backend = "keyword"
	}
	if c.MaxResults == 0 {
		c.MaxResults = 5
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 10
	}
	if c.ToolSearchToolName == "" {
		c.ToolSearchToolName = "toolSearchTool"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks field ranges the way the rest of this module's config
// structs do.
func (c *InterceptorConfig) Validate() error {
	switch c.Retriever.Backend {
	case "keyword", "semantic", "regex":
	default:
		return fmt.Errorf("config: unknown retriever backend %q", c.Retriever.Backend)
	}
	if c.MaxResults < 1 || c.MaxResults > 10 {
		return fmt.Errorf("config: maxResults must be in [1,10], got %d", c.MaxResults)
	}
	if c.MaxTurns < 1 {
		return fmt.Errorf("config: maxTurns must be positive, got %d", c.MaxTurns)
	}
	return nil
}

// Load reads path as YAML, overlays TOOLSEARCH_-prefixed environment
// variables, and decodes the result into an InterceptorConfig with
// defaults applied.
func Load(path string) (*InterceptorConfig, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	camel := func(words []string) string {
		for i := 1; i < len(words); i++ {
			if words[i] != "" {
				words[i] = strings.ToUpper(words[i][:1]) + words[i][1:]
			}
		}
		return strings.Join(words, "")
	}
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		words := strings.Split(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_")
		if len(words) > 1 && words[0] == "retriever" {
			return "retriever." + camel(words[1:])
		}
		return camel(words)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load environment overrides: %w", err)
	}

	cfg := &InterceptorConfig{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			TagName:          "koanf",
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
