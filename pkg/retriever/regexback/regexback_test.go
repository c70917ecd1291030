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

package regexback_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
	"github.com/toolsearch-go/toolsearch/pkg/retriever/regexback"
)

func TestFindTools_MatchesPattern(t *testing.T) {
	r := regexback.New()
	ctx := context.Background()

	require.NoError(t, r.IndexTool(ctx, "s1", retriever.IndexEntry{ToolName: "getWeather", Description: "weather"}))
	require.NoError(t, r.IndexTool(ctx, "s1", retriever.IndexEntry{ToolName: "getCurrentTime", Description: "time"}))
	require.NoError(t, r.IndexTool(ctx, "s1", retriever.IndexEntry{ToolName: "listOrders", Description: "orders"}))

	resp, err := r.FindTools(ctx, retriever.FindRequest{SessionID: "s1", Query: "^get"})
	require.NoError(t, err)
	require.Len(t, resp.ToolReferences, 2)
	for _, ref := range resp.ToolReferences {
		assert.Equal(t, 1.0, ref.RelevanceScore)
	}
}

func TestFindTools_InvalidPatternYieldsWarningNotError(t *testing.T) {
	r := regexback.New()
	ctx := context.Background()
	require.NoError(t, r.IndexTool(ctx, "s1", retriever.IndexEntry{ToolName: "getWeather", Description: "weather"}))

	resp, err := r.FindTools(ctx, retriever.FindRequest{SessionID: "s1", Query: "("})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolReferences)
	assert.NotEmpty(t, resp.Metadata["warning"])
}

func TestClearIndex_Idempotent(t *testing.T) {
	r := regexback.New()
	ctx := context.Background()
	require.NoError(t, r.IndexTool(ctx, "s1", retriever.IndexEntry{ToolName: "getWeather", Description: "weather"}))
	require.NoError(t, r.ClearIndex(ctx, "s1"))
	require.NoError(t, r.ClearIndex(ctx, "s1"))

	resp, err := r.FindTools(ctx, retriever.FindRequest{SessionID: "s1", Query: ".*"})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolReferences)
}
