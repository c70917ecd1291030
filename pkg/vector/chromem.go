// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector holds the embedded vector store backing the semantic
// retriever. Isolation between conversations is structural: each session
// owns its own chromem-go collection, so a query against one session's
// collection can never surface another session's vectors.
package vector

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Embedder turns text into a dense vector. Supplied by the caller so this
// package never depends on a concrete embedding provider.
type Embedder func(ctx context.Context, text string) ([]float32, error)

// Match is one scored hit from Query.
type Match struct {
	ToolName    string
	Description string
	Score       float32
}

// Store is a per-session, in-memory vector store over tool descriptions.
// No file persistence: the spec treats the index as ephemeral to one loop,
// so every collection is dropped at Clear and nothing survives a restart.
type Store struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection

	// embeddingFunc satisfies chromem-go's collection constructor; vectors
	// are always supplied pre-computed via Upsert/Query, so this is never
	// actually invoked by chromem-go itself.
	embeddingFunc chromem.EmbeddingFunc
}

// NewStore builds an empty, in-memory vector store.
func NewStore() *Store {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("vector: pre-computed embeddings required, got bare text %q", text)
		},
	}
}

func collectionName(sessionID string) string {
	return "toolsearch-session-" + sessionID
}

func (s *Store) collection(sessionID string) (*chromem.Collection, error) {
	name := collectionName(sessionID)

	s.mu.RLock()
	if col, ok := s.collections[name]; ok {
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("vector: create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return col, nil
}

// Upsert stores (or replaces) toolName's vector within sessionID's
// collection. Replacing is how the retriever interface's duplicate-name
// tolerance for indexTool is satisfied: chromem-go's AddDocuments
// overwrites a document sharing the same ID.
func (s *Store) Upsert(ctx context.Context, sessionID, toolName, description string, vec []float32) error {
	col, err := s.collection(sessionID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        toolName,
		Content:   description,
		Metadata:  map[string]string{"toolName": toolName},
		Embedding: vec,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vector: upsert %q: %w", toolName, err)
	}
	return nil
}

// Query returns the topK nearest vectors to vec within sessionID's
// collection, by cosine similarity. Returns an empty slice, not an error,
// when the session has no collection yet.
func (s *Store) Query(ctx context.Context, sessionID string, vec []float32, topK int) ([]Match, error) {
	s.mu.RLock()
	col, ok := s.collections[collectionName(sessionID)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if n := col.Count(); n < topK {
		topK = n
	}
	if topK <= 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vec, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector: query: %w", err)
	}

	out := make([]Match, 0, len(results))
	for _, r := range results {
		out = append(out, Match{
			ToolName:    r.Metadata["toolName"],
			Description: r.Content,
			Score:       r.Similarity,
		})
	}
	return out, nil
}

// Clear removes sessionID's collection entirely. Idempotent: clearing an
// already-absent or never-created session is a no-op.
func (s *Store) Clear(sessionID string) error {
	name := collectionName(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return nil
	}

	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("vector: clear session %q: %w", sessionID, err)
	}
	delete(s.collections, name)
	return nil
}
