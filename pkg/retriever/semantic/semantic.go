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

// Package semantic implements a vector-similarity retriever back-end on
// top of an embedded chromem-go store. Tool descriptions are embedded once
// at index time; queries are embedded once per search and compared by
// cosine similarity.
package semantic

import (
	"context"
	"fmt"
	"sort"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
	"github.com/toolsearch-go/toolsearch/pkg/vector"
)

// DefaultMinScore is the floor below which a cosine-similarity match is
// dropped.
const DefaultMinScore = 0.5

// TextForm chooses what text is embedded for a tool.
type TextForm int

const (
	// TextFormDescription embeds the description alone.
	TextFormDescription TextForm = iota
	// TextFormNameAndDescription embeds "name: description".
	TextFormNameAndDescription
)

// Retriever is the semantic back-end.
type Retriever struct {
	store    *vector.Store
	embed    vector.Embedder
	minScore float64
	textForm TextForm
}

// Config configures a semantic Retriever.
type Config struct {
	// Embed converts text to a vector. Required.
	Embed vector.Embedder

	// MinScore floors accepted cosine similarity. <= 0 uses DefaultMinScore.
	MinScore float64

	// TextForm chooses what text is embedded at index time.
	TextForm TextForm
}

// New builds a semantic retriever backed by an in-memory vector store.
func New(cfg Config) (*Retriever, error) {
	if cfg.Embed == nil {
		return nil, fmt.Errorf("semantic: embed function is required")
	}
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Retriever{
		store:    vector.NewStore(),
		embed:    cfg.Embed,
		minScore: minScore,
		textForm: cfg.TextForm,
	}, nil
}

func (r *Retriever) textFor(entry retriever.IndexEntry) string {
	if r.textForm == TextFormNameAndDescription {
		return entry.ToolName + ": " + entry.Description
	}
	return entry.Description
}

// IndexTool embeds entry's text and upserts it into sessionID's
// collection. A single retry with no backoff covers transient embedding
// failures; repeated failure is reported to the caller, who skips the
// entry and records a warning, per the back-end-unavailable policy.
func (r *Retriever) IndexTool(ctx context.Context, sessionID string, entry retriever.IndexEntry) error {
	text := r.textFor(entry)

	vec, err := r.embed(ctx, text)
	if err != nil {
		vec, err = r.embed(ctx, text)
		if err != nil {
			return fmt.Errorf("semantic: embed %q: %w", entry.ToolName, err)
		}
	}

	if err := r.store.Upsert(ctx, sessionID, entry.ToolName, entry.Description, vec); err != nil {
		return fmt.Errorf("semantic: index %q: %w", entry.ToolName, err)
	}
	return nil
}

// FindTools embeds req.Query and returns the nearest tool vectors within
// req.SessionID above the configured minimum score.
func (r *Retriever) FindTools(ctx context.Context, req retriever.FindRequest) (retriever.FindResponse, error) {
	max := retriever.ClampMaxResults(req.MaxResults)
	meta := map[string]string{"searchType": string(retriever.SearchTypeSemantic), "query": req.Query}

	if req.Query == "" {
		return retriever.FindResponse{Metadata: meta}, nil
	}

	vec, err := r.embed(ctx, req.Query)
	if err != nil {
		meta["warning"] = fmt.Sprintf("embedding unavailable: %v", err)
		return retriever.FindResponse{Metadata: meta}, nil
	}

	// Over-fetch so post-filtering by minScore doesn't starve the
	// requested page.
	matches, err := r.store.Query(ctx, req.SessionID, vec, max*2)
	if err != nil {
		meta["warning"] = fmt.Sprintf("vector search unavailable: %v", err)
		return retriever.FindResponse{Metadata: meta}, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ToolName < matches[j].ToolName
	})

	refs := make([]retriever.ToolReference, 0, len(matches))
	for _, m := range matches {
		if float64(m.Score) < r.minScore {
			continue
		}
		refs = append(refs, retriever.ToolReference{
			ToolName:       m.ToolName,
			Summary:        m.Description,
			RelevanceScore: float64(m.Score),
		})
	}

	totalMatches := len(refs)
	if len(refs) > max {
		refs = refs[:max]
	}

	return retriever.FindResponse{
		ToolReferences: refs,
		TotalMatches:   totalMatches,
		Metadata:       meta,
	}, nil
}

// ClearIndex drops sessionID's collection. Idempotent.
func (r *Retriever) ClearIndex(ctx context.Context, sessionID string) error {
	return r.store.Clear(sessionID)
}

// SearchType reports this back-end's matching strategy.
func (r *Retriever) SearchType() retriever.SearchType {
	return retriever.SearchTypeSemantic
}

var _ retriever.Retriever = (*Retriever)(nil)
