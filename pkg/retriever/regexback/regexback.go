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

// Package regexback implements a retriever back-end that matches tool
// names against the query compiled as a regular expression. No scoring
// beyond match/no-match: every match receives relevance score 1.0.
package regexback

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
)

// Retriever is the regex back-end.
type Retriever struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string // sessionID -> toolName -> description
}

// New builds a regex retriever.
func New() *Retriever {
	return &Retriever{sessions: make(map[string]map[string]string)}
}

// IndexTool records entry's name (and description, returned as Summary on
// a hit) within sessionID.
func (r *Retriever) IndexTool(ctx context.Context, sessionID string, entry retriever.IndexEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names, ok := r.sessions[sessionID]
	if !ok {
		names = make(map[string]string)
		r.sessions[sessionID] = names
	}
	names[entry.ToolName] = entry.Description
	return nil
}

// FindTools compiles req.Query as a regular expression and matches it
// against every tool name indexed for req.SessionID. An invalid pattern
// yields an empty result plus a warning, not an error.
func (r *Retriever) FindTools(ctx context.Context, req retriever.FindRequest) (retriever.FindResponse, error) {
	max := retriever.ClampMaxResults(req.MaxResults)
	meta := map[string]string{"searchType": string(retriever.SearchTypeRegex), "query": req.Query}

	if req.Query == "" {
		return retriever.FindResponse{Metadata: meta}, nil
	}

	pattern, err := regexp.Compile(req.Query)
	if err != nil {
		meta["warning"] = fmt.Sprintf("invalid pattern: %v", err)
		return retriever.FindResponse{Metadata: meta}, nil
	}

	r.mu.RLock()
	names := r.sessions[req.SessionID]
	matched := make([]string, 0, len(names))
	for name := range names {
		if pattern.MatchString(name) {
			matched = append(matched, name)
		}
	}
	descriptions := names
	r.mu.RUnlock()

	sort.Strings(matched)

	totalMatches := len(matched)
	if len(matched) > max {
		matched = matched[:max]
	}

	refs := make([]retriever.ToolReference, 0, len(matched))
	for _, name := range matched {
		refs = append(refs, retriever.ToolReference{
			ToolName:       name,
			Summary:        descriptions[name],
			RelevanceScore: 1.0,
		})
	}

	return retriever.FindResponse{
		ToolReferences: refs,
		TotalMatches:   totalMatches,
		Metadata:       meta,
	}, nil
}

// ClearIndex drops sessionID's names. Idempotent.
func (r *Retriever) ClearIndex(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// SearchType reports this back-end's matching strategy.
func (r *Retriever) SearchType() retriever.SearchType {
	return retriever.SearchTypeRegex
}

var _ retriever.Retriever = (*Retriever)(nil)
