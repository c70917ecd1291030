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

// Package interceptor rewrites outbound LLM requests to hide inactive
// tools behind a single bootstrapping search tool, and inspects responses
// to promote newly discovered tools to callable status on the next turn.
// It owns the multi-turn loop: initializeLoop/before/after/finalizeLoop,
// matching the request/postprocess/tool-handling shape of a conventional
// reasoning-loop driver, generalized to run against any model.Transport.
package interceptor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/toolsearch-go/toolsearch/pkg/logger"
	"github.com/toolsearch-go/toolsearch/pkg/model"
	"github.com/toolsearch-go/toolsearch/pkg/retriever"
	"github.com/toolsearch-go/toolsearch/pkg/session"
	"github.com/toolsearch-go/toolsearch/pkg/tool"
	"github.com/toolsearch-go/toolsearch/pkg/tool/searchtool"
	"github.com/toolsearch-go/toolsearch/pkg/toolsearcherr"
)

// DefaultAdvisorOrder mirrors the source's HIGH_PRIORITY + 300 convention:
// the interceptor must run before advisors that execute tool calls.
const DefaultAdvisorOrder = 1300

// DefaultSystemMessageSuffix is appended to the system message during
// loop initialization when Config.SystemMessageSuffix is empty.
const DefaultSystemMessageSuffix = `
If none of your currently available tools can complete the user's request, call toolSearchTool to search the full tool catalog. Arguments: query (required, a natural-language description of the capability you need), maxResults (optional, 1-10, default 5), categoryFilter (optional). The call returns only the names of matching tools; it does not execute them. Any tool named in the result becomes directly callable on your next turn.`

// Config configures an Interceptor. Zero-valued optional fields take the
// defaults documented here.
type Config struct {
	// Retriever is the tool-search back-end. Required.
	Retriever retriever.Retriever

	// AdvisorOrder is an advisory ordering hint for hosts that compose
	// this interceptor with other request/response advisors.
	AdvisorOrder int

	// SystemMessageSuffix overrides DefaultSystemMessageSuffix.
	SystemMessageSuffix string

	// AccumulateDiscovered selects accumulating (true) vs.
	// non-accumulating (false) DiscoveredSet behavior. The zero value is
	// false, so a Config that leaves it unset is non-accumulating.
	AccumulateDiscovered bool

	// MaxResults is filled with retriever.DefaultMaxResults when zero. The
	// search tool does not read it: each call's maxResults argument is
	// clamped by the retriever via retriever.ClampMaxResults.
	MaxResults int

	// MaxTurns bounds LLM turns per top-level request. Default 10.
	MaxTurns int

	// ToolSearchToolName overrides the reserved search-tool name.
	ToolSearchToolName string

	// Logger receives structured diagnostics. Defaults to logger.Default().
	Logger *slog.Logger
}

func (c *Config) setDefaults() {
	if c.AdvisorOrder == 0 {
		c.AdvisorOrder = DefaultAdvisorOrder
	}
	if c.SystemMessageSuffix == "" {
		c.SystemMessageSuffix = DefaultSystemMessageSuffix
	}
	if c.MaxResults == 0 {
		c.MaxResults = retriever.DefaultMaxResults
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 10
	}
	if c.ToolSearchToolName == "" {
		c.ToolSearchToolName = searchtool.Name
	}
	if c.Logger == nil {
		c.Logger = logger.Default()
	}
}

// LoopBudgetExceededKey is the model.Response metadata key set when a
// loop is terminated by MaxTurns rather than a final assistant message.
const LoopBudgetExceededKey = "toolsearch.loopBudgetExceeded"

// Interceptor is the recursion driver described in this package's
// documentation.
type Interceptor struct {
	cfg   Config
	store *session.Store
}

// New builds an Interceptor. Returns ConfigurationConflict if cfg.Retriever
// is nil.
func New(cfg Config) (*Interceptor, error) {
	if cfg.Retriever == nil {
		return nil, toolsearcherr.New(toolsearcherr.ConfigurationConflict, "retriever is required")
	}
	cfg.setDefaults()
	return &Interceptor{cfg: cfg, store: session.NewStore()}, nil
}

type sessionIDKey struct{}

func contextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// Run drives the full multi-turn loop for one top-level user request:
// initializeLoop, then before/call/after turns until the model stops
// requesting tools or MaxTurns is reached, then finalizeLoop.
//
// tools is the full catalog configured for this conversation; req carries
// the conversation so far. Run appends assistant and tool-response
// messages to req.Messages as the loop progresses.
func (in *Interceptor) Run(ctx context.Context, transport model.Transport, req *model.Request, tools []tool.Callback) (*model.Response, error) {
	sessionID, err := in.initializeLoop(ctx, req, tools)
	if err != nil {
		return nil, err
	}
	defer in.finalizeLoop(ctx, sessionID)

	ctx = contextWithSessionID(ctx, sessionID)

	var lastResp *model.Response
	for turn := 1; turn <= in.cfg.MaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, toolsearcherr.Wrap(toolsearcherr.Cancelled, "loop cancelled", err)
		}

		if err := in.before(ctx, sessionID, req); err != nil {
			return nil, err
		}

		resp, err := transport.Call(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("interceptor: transport call: %w", err)
		}
		lastResp = resp

		if !in.after(resp) {
			return resp, nil
		}

		if turn == in.cfg.MaxTurns {
			in.cfg.Logger.Warn("loop budget exceeded", "sessionId", sessionID, "maxTurns", in.cfg.MaxTurns)
			resp.Metadata = setMetadata(resp.Metadata, LoopBudgetExceededKey, "true")
			return resp, nil
		}

		in.appendTurn(ctx, sessionID, req, resp)
	}

	return lastResp, nil
}

func setMetadata(m map[string]string, k, v string) map[string]string {
	if m == nil {
		m = make(map[string]string, 1)
	}
	m[k] = v
	return m
}

// initializeLoop derives the session id, indexes the configured tool
// catalog, reserves the search-tool name, and augments the system
// message. Runs once per top-level user turn.
func (in *Interceptor) initializeLoop(ctx context.Context, req *model.Request, tools []tool.Callback) (string, error) {
	sessionID := req.ConversationID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	in.store.Open(sessionID)

	for _, cb := range tools {
		def := cb.Definition()
		if def.Name == in.cfg.ToolSearchToolName {
			in.finalizeLoop(ctx, sessionID)
			return "", toolsearcherr.New(toolsearcherr.ConfigurationConflict,
				fmt.Sprintf("tool name %q is reserved for the search tool", def.Name))
		}
		if err := in.cfg.Retriever.IndexTool(ctx, sessionID, retriever.IndexEntry{
			ToolName:    def.Name,
			Description: def.Description,
		}); err != nil {
			in.cfg.Logger.Warn("index tool failed, skipping", "tool", def.Name, "error", err)
			continue
		}
		in.store.RegisterCallback(sessionID, cb)
	}

	searchCallback := searchtool.New(in.cfg.Retriever, sessionIDFromContext)
	if def := searchCallback.Definition(); def.Name != in.cfg.ToolSearchToolName {
		def.Name = in.cfg.ToolSearchToolName
		searchCallback = tool.NewCallback(def, searchCallback.Invoke)
	}
	in.store.RegisterCallback(sessionID, searchCallback)

	if req.SystemMessage == "" {
		req.SystemMessage = in.cfg.SystemMessageSuffix
	} else {
		req.SystemMessage = req.SystemMessage + "\n" + in.cfg.SystemMessageSuffix
	}

	return sessionID, nil
}

// before rewrites req's advertised tool set for the upcoming turn: it
// extracts newly named tools from the most recent search-tool response
// messages, folds them into the session's DiscoveredSet, and advertises
// exactly {searchTool} ∪ callbacks(DiscoveredSet).
func (in *Interceptor) before(ctx context.Context, sessionID string, req *model.Request) error {
	newNames := in.extractSearchResults(req)
	if len(newNames) > 0 {
		in.store.UpdateDiscovered(sessionID, newNames, in.cfg.AccumulateDiscovered)
	}

	discovered := in.store.Discovered(sessionID)

	opts := req.Options.Clone()
	opts.ToolDefinitions = opts.ToolDefinitions[:0]

	if searchCb, ok := in.store.Callback(sessionID, in.cfg.ToolSearchToolName); ok {
		opts.ToolDefinitions = append(opts.ToolDefinitions, toWireDefinition(searchCb.Definition()))
	}

	for _, name := range discovered {
		cb, ok := in.store.Callback(sessionID, name)
		if !ok {
			// Invariant 1: DiscoveredSet names absent from the registry
			// are silently dropped.
			continue
		}
		opts.ToolDefinitions = append(opts.ToolDefinitions, toWireDefinition(cb.Definition()))
	}

	req.Options = opts
	return nil
}

// after reports whether the outer loop must run another turn.
func (in *Interceptor) after(resp *model.Response) bool {
	return resp.HasToolCalls()
}

// finalizeLoop clears the session's retriever index and releases cached
// state. Runs once per top-level user turn, including on early returns.
func (in *Interceptor) finalizeLoop(ctx context.Context, sessionID string) {
	if err := in.cfg.Retriever.ClearIndex(ctx, sessionID); err != nil {
		in.cfg.Logger.Warn("clear index failed", "sessionId", sessionID, "error", err)
	}
	in.store.Close(sessionID)
}

// extractSearchResults scans req.Messages for the most recent
// search-tool tool-response messages and parses each one as a JSON array
// of tool names. Malformed content is dropped with a warning, per the
// MalformedSearchResponse policy; it never fails the loop.
func (in *Interceptor) extractSearchResults(req *model.Request) []string {
	var names []string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != model.RoleTool || len(msg.ToolResponses) == 0 {
			continue
		}

		var found bool
		for _, tr := range msg.ToolResponses {
			if tr.ToolName != in.cfg.ToolSearchToolName {
				continue
			}
			found = true
			var parsed []string
			if err := json.Unmarshal([]byte(tr.Content), &parsed); err != nil {
				in.cfg.Logger.Warn("malformed search-tool response, dropping", "error", err)
				continue
			}
			names = append(names, parsed...)
		}
		if found {
			break
		}
	}
	return names
}

// appendTurn executes resp's tool calls against the session's callback
// registry and appends the resulting assistant and tool-response messages
// to req.Messages, so the next before() sees them.
func (in *Interceptor) appendTurn(ctx context.Context, sessionID string, req *model.Request, resp *model.Response) {
	req.Messages = append(req.Messages, resp.Message)

	toolMsg := model.Message{Role: model.RoleTool}
	for _, call := range resp.Message.ToolCalls {
		cb, ok := in.store.Callback(sessionID, call.Name)
		if !ok {
			toolMsg.ToolResponses = append(toolMsg.ToolResponses, model.ToolResponse{
				CallID:   call.ID,
				ToolName: call.Name,
				Content:  fmt.Sprintf(`{"error":"unknown tool %q"}`, call.Name),
			})
			continue
		}

		result, err := cb.Invoke(ctx, call.Arguments)
		content, encErr := encodeToolResult(call.Name, in.cfg.ToolSearchToolName, result, err)
		if encErr != nil {
			content = fmt.Sprintf(`{"error":%q}`, encErr.Error())
		}
		toolMsg.ToolResponses = append(toolMsg.ToolResponses, model.ToolResponse{
			CallID:   call.ID,
			ToolName: call.Name,
			Content:  content,
		})
	}
	req.Messages = append(req.Messages, toolMsg)
}

// encodeToolResult serializes a callback's result the way the outer chat
// framework would before handing it back to the model. The search tool is
// special-cased to the bare JSON array format §4.2 specifies; every other
// tool's full result map is serialized as-is.
func encodeToolResult(toolName, searchToolName string, result map[string]any, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if toolName == searchToolName {
		names, _ := result["toolNames"].([]string)
		data, mErr := json.Marshal(names)
		return string(data), mErr
	}
	data, mErr := json.Marshal(result)
	return string(data), mErr
}

func toWireDefinition(def tool.Definition) model.ToolDefinition {
	return model.ToolDefinition{
		Name:        def.Name,
		Description: def.Description,
		Schema:      def.Schema,
	}
}
