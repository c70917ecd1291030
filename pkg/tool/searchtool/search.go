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

// Package searchtool adapts a retriever.Retriever into the one synthetic
// tool the interceptor always advertises to the LLM. The callback is
// stateless and thread-safe: all state lives in the retriever, keyed by
// the session id resolved from each call's context.
package searchtool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/toolsearch-go/toolsearch/pkg/retriever"
	"github.com/toolsearch-go/toolsearch/pkg/tool"
)

// Name is the reserved tool name. No user-configured callback may use it;
// the interceptor rejects such a configuration with ConfigurationConflict.
const Name = "toolSearchTool"

// Args is the declared input shape, reflected into a JSON schema via
// invopop/jsonschema the same way functiontool.generateSchema does for
// ordinary Go-typed tools.
type Args struct {
	Query          string `json:"query" jsonschema:"required,description=Natural-language description of the capability needed"`
	MaxResults     int    `json:"maxResults,omitempty" jsonschema:"description=Maximum number of tool names to return,default=5,minimum=1,maximum=10"`
	CategoryFilter string `json:"categoryFilter,omitempty" jsonschema:"description=Restrict the search to tools tagged with this category"`
}

// SessionIDFunc resolves the calling conversation's session id. Bound by
// the interceptor, which is the only component that knows how a given
// invocation maps to a session.
type SessionIDFunc func(ctx context.Context) string

// New builds the search-tool callback backed by r. sessionID resolves the
// session for each invocation; the interceptor supplies this from its own
// bookkeeping rather than trusting an LLM-supplied argument.
func New(r retriever.Retriever, sessionID SessionIDFunc) tool.Callback {
	schema, err := generateSchema()
	if err != nil {
		// The schema is derived from a fixed Go type; a failure here is a
		// programming error, not a runtime condition.
		panic(fmt.Sprintf("searchtool: generate schema: %v", err))
	}

	def := tool.Definition{
		Name:        Name,
		Description: "Search the catalog of available tools by capability. Returns the names of the best-matching tools; call this whenever none of your currently visible tools can complete the task.",
		Schema:      schema,
	}

	return tool.NewCallback(def, func(ctx context.Context, rawArgs map[string]any) (map[string]any, error) {
		args, err := parseArgs(rawArgs)
		if err != nil {
			return nil, err
		}

		resp, err := r.FindTools(ctx, retriever.FindRequest{
			SessionID:      sessionID(ctx),
			Query:          args.Query,
			MaxResults:     args.MaxResults,
			CategoryFilter: args.CategoryFilter,
		})
		if err != nil {
			return nil, fmt.Errorf("searchtool: find tools: %w", err)
		}

		// Only names cross back to the LLM: summary and score are for the
		// interceptor's own bookkeeping, not conversation content. The
		// caller that executes this tool serializes the result into the
		// tool-response message content (Interceptor.Run writes it as a
		// JSON array of strings), which the interceptor later reads back.
		names := make([]string, len(resp.ToolReferences))
		for i, ref := range resp.ToolReferences {
			names[i] = ref.ToolName
		}

		return map[string]any{"toolNames": names}, nil
	})
}

func parseArgs(raw map[string]any) (Args, error) {
	var args Args
	if q, ok := raw["query"].(string); ok {
		args.Query = q
	}
	if args.Query == "" {
		return Args{}, fmt.Errorf("searchtool: query is required")
	}

	switch v := raw["maxResults"].(type) {
	case float64:
		args.MaxResults = int(v)
	case int:
		args.MaxResults = v
	}

	if cf, ok := raw["categoryFilter"].(string); ok {
		args.CategoryFilter = cf
	}

	return args, nil
}

// generateSchema reflects Args into the map[string]any shape the LLM
// transport expects, the same way functiontool reflects Go-typed tool
// arguments elsewhere in this codebase.
func generateSchema() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Args))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	delete(result, "$schema")
	delete(result, "$id")

	if result["type"] == "object" {
		out := map[string]any{"type": "object", "properties": result["properties"]}
		if required, ok := result["required"]; ok {
			out["required"] = required
		}
		return out, nil
	}
	return result, nil
}
