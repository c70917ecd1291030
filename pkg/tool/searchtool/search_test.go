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

package searchtool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
	"github.com/toolsearch-go/toolsearch/pkg/tool/searchtool"
)

// fakeRetriever records the FindRequest it last received and returns a
// fixed set of tool references, so tests can assert on argument plumbing
// without depending on any real retriever back-end.
type fakeRetriever struct {
	lastReq retriever.FindRequest
	refs    []retriever.ToolReference
	err     error
}

func (f *fakeRetriever) IndexTool(ctx context.Context, sessionID string, e retriever.IndexEntry) error {
	return nil
}

func (f *fakeRetriever) FindTools(ctx context.Context, req retriever.FindRequest) (retriever.FindResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return retriever.FindResponse{}, f.err
	}
	return retriever.FindResponse{ToolReferences: f.refs, TotalMatches: len(f.refs)}, nil
}

func (f *fakeRetriever) ClearIndex(ctx context.Context, sessionID string) error { return nil }

func (f *fakeRetriever) SearchType() retriever.SearchType { return retriever.SearchTypeKeyword }

func fixedSessionID(id string) searchtool.SessionIDFunc {
	return func(ctx context.Context) string { return id }
}

func TestNew_DefinitionHasNameAndSchema(t *testing.T) {
	r := &fakeRetriever{}
	cb := searchtool.New(r, fixedSessionID("s1"))

	def := cb.Definition()
	assert.Equal(t, searchtool.Name, def.Name)
	assert.NotEmpty(t, def.Description)
	require.NotNil(t, def.Schema)
	assert.Equal(t, "object", def.Schema["type"])

	props, ok := def.Schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "maxResults")
	assert.Contains(t, props, "categoryFilter")
}

func TestInvoke_ForwardsArgsAndReturnsOnlyNames(t *testing.T) {
	r := &fakeRetriever{refs: []retriever.ToolReference{
		{ToolName: "weather", Summary: "Get the weather", RelevanceScore: 0.9},
		{ToolName: "currentTime", Summary: "Current time", RelevanceScore: 0.5},
	}}
	cb := searchtool.New(r, fixedSessionID("s1"))

	result, err := cb.Invoke(context.Background(), map[string]any{
		"query":          "what time is it",
		"maxResults":     float64(3),
		"categoryFilter": "utility",
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", r.lastReq.SessionID)
	assert.Equal(t, "what time is it", r.lastReq.Query)
	assert.Equal(t, 3, r.lastReq.MaxResults)
	assert.Equal(t, "utility", r.lastReq.CategoryFilter)

	names, ok := result["toolNames"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"weather", "currentTime"}, names)

	_, hasSummary := result["summary"]
	assert.False(t, hasSummary)
}

func TestInvoke_EmptyQueryIsRejected(t *testing.T) {
	r := &fakeRetriever{}
	cb := searchtool.New(r, fixedSessionID("s1"))

	_, err := cb.Invoke(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestInvoke_MaxResultsIntCoercion(t *testing.T) {
	r := &fakeRetriever{}
	cb := searchtool.New(r, fixedSessionID("s1"))

	_, err := cb.Invoke(context.Background(), map[string]any{"query": "weather", "maxResults": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r.lastReq.MaxResults)
}

func TestInvoke_PropagatesRetrieverError(t *testing.T) {
	r := &fakeRetriever{err: assert.AnError}
	cb := searchtool.New(r, fixedSessionID("s1"))

	_, err := cb.Invoke(context.Background(), map[string]any{"query": "weather"})
	assert.Error(t, err)
}
