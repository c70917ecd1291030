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

// Package tool defines the external description of a callable tool and the
// host-side binding that can invoke it.
//
// A Definition is what the LLM sees: a name, a description, and a JSON
// input schema. A Callback pairs a Definition with the host implementation
// that actually runs when the LLM asks for it. The interceptor decides,
// turn by turn, which callbacks are worth advertising to the model, and
// Interceptor.Run invokes the callbacks for the tool calls the model makes.
package tool

import (
	"context"
	"fmt"
)

// Definition is an immutable external description of a callable tool.
type Definition struct {
	// Name is the tool's unique identifier across a request's tool set.
	Name string

	// Description is the human- (and model-) readable explanation of what
	// the tool does. This is the text indexed by the retriever.
	Description string

	// Schema is the JSON input schema advertised to the LLM. May be nil
	// for tools that take no arguments.
	Schema map[string]any
}

// Callback binds a Definition to an invocable implementation. The
// interceptor advertises the Definition, and Interceptor.Run calls Invoke
// when the model requests the tool.
type Callback interface {
	// Definition returns the tool's external description.
	Definition() Definition

	// Invoke executes the tool with the given arguments.
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// CallFunc is the invocation signature accepted by NewCallback.
type CallFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// callback is the default Callback implementation: a Definition plus a
// plain function.
type callback struct {
	def Definition
	fn  CallFunc
}

// NewCallback builds a Callback from a Definition and a function. This is
// the common path for wiring an application's existing tool implementations
// (weather lookups, inventory queries, ...) into the middleware without
// requiring them to satisfy any interface beyond a name/description/schema
// and a func.
func NewCallback(def Definition, fn CallFunc) Callback {
	return &callback{def: def, fn: fn}
}

func (c *callback) Definition() Definition {
	return c.def
}

func (c *callback) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if c.fn == nil {
		return nil, fmt.Errorf("tool %q has no implementation", c.def.Name)
	}
	return c.fn(ctx, args)
}
