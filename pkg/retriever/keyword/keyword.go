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

// Package keyword implements an in-memory inverted-index retriever
// back-end. Each session owns its own posting lists; a query is answered
// by OR-combining a phrase match over the full description and a boolean
// match over individual terms, scored by TF-IDF.
package keyword

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
)

// DefaultMinScore is the floor below which a match is dropped.
const DefaultMinScore = 0.25

// document is one indexed tool within a session.
type document struct {
	toolName    string
	description string
	tokens      []string
	termFreq    map[string]float64
}

// sessionIndex is one session's posting lists and document set.
type sessionIndex struct {
	docs map[string]*document // keyed by toolName
	// postings maps term -> set of toolNames containing it, for idf and
	// boolean-term matching.
	postings map[string]map[string]struct{}
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{
		docs:     make(map[string]*document),
		postings: make(map[string]map[string]struct{}),
	}
}

// Retriever is the keyword back-end.
type Retriever struct {
	minScore float64

	mu       sync.RWMutex
	sessions map[string]*sessionIndex
}

// New builds a keyword retriever. minScore <= 0 uses DefaultMinScore.
func New(minScore float64) *Retriever {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Retriever{
		minScore: minScore,
		sessions: make(map[string]*sessionIndex),
	}
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

// IndexTool adds or replaces entry within sessionID's posting lists.
func (r *Retriever) IndexTool(ctx context.Context, sessionID string, entry retriever.IndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, ok := r.sessions[sessionID]
	if !ok {
		idx = newSessionIndex()
		r.sessions[sessionID] = idx
	}

	// Replacing a prior entry: remove its postings first so stale terms
	// don't keep matching after a description changes.
	if prev, exists := idx.docs[entry.ToolName]; exists {
		for term := range prev.termFreq {
			if set, ok := idx.postings[term]; ok {
				delete(set, entry.ToolName)
				if len(set) == 0 {
					delete(idx.postings, term)
				}
			}
		}
	}

	tokens := tokenize(entry.Description)
	termFreq := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		termFreq[t]++
	}
	for t := range termFreq {
		termFreq[t] /= float64(len(tokens))
		set, ok := idx.postings[t]
		if !ok {
			set = make(map[string]struct{})
			idx.postings[t] = set
		}
		set[entry.ToolName] = struct{}{}
	}

	idx.docs[entry.ToolName] = &document{
		toolName:    entry.ToolName,
		description: entry.Description,
		tokens:      tokens,
		termFreq:    termFreq,
	}
	return nil
}

// FindTools scores sessionID's documents against req.Query.
func (r *Retriever) FindTools(ctx context.Context, req retriever.FindRequest) (retriever.FindResponse, error) {
	max := retriever.ClampMaxResults(req.MaxResults)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return retriever.FindResponse{
			Metadata: map[string]string{"searchType": string(retriever.SearchTypeKeyword), "query": req.Query},
		}, nil
	}

	r.mu.RLock()
	idx, ok := r.sessions[req.SessionID]
	r.mu.RUnlock()
	if !ok {
		return retriever.FindResponse{
			Metadata: map[string]string{"searchType": string(retriever.SearchTypeKeyword), "query": req.Query},
		}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	queryTerms := tokenize(query)
	phrase := strings.ToLower(query)
	numDocs := float64(len(idx.docs))

	type scored struct {
		name  string
		score float64
	}
	var hits []scored

	for name, doc := range idx.docs {
		var score float64

		// (b) boolean sub-query: each query term contributes tf*idf.
		for _, term := range queryTerms {
			tf, has := doc.termFreq[term]
			if !has {
				continue
			}
			df := float64(len(idx.postings[term]))
			idf := math.Log((numDocs+1)/(df+1)) + 1
			score += tf * idf
		}

		// (a) phrase sub-query: a verbatim substring match is a strong
		// signal independent of term-level scoring.
		if phrase != "" && strings.Contains(strings.ToLower(doc.description), phrase) {
			score += 1.0
		}

		if score >= r.minScore {
			hits = append(hits, scored{name: name, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})

	totalMatches := len(hits)
	if len(hits) > max {
		hits = hits[:max]
	}

	refs := make([]retriever.ToolReference, 0, len(hits))
	for _, h := range hits {
		doc := idx.docs[h.name]
		refs = append(refs, retriever.ToolReference{
			ToolName:       doc.toolName,
			Summary:        doc.description,
			RelevanceScore: h.score,
		})
	}

	return retriever.FindResponse{
		ToolReferences: refs,
		TotalMatches:   totalMatches,
		Metadata:       map[string]string{"searchType": string(retriever.SearchTypeKeyword), "query": req.Query},
	}, nil
}

// ClearIndex drops sessionID's documents and postings. Idempotent.
func (r *Retriever) ClearIndex(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// SearchType reports this back-end's matching strategy.
func (r *Retriever) SearchType() retriever.SearchType {
	return retriever.SearchTypeKeyword
}

var _ retriever.Retriever = (*Retriever)(nil)
