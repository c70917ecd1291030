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

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toolsearch-go/toolsearch/pkg/session"
	"github.com/toolsearch-go/toolsearch/pkg/tool"
)

func fakeCallback(name string) tool.Callback {
	return tool.NewCallback(tool.Definition{Name: name}, func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, nil
	})
}

func TestStore_RegisterAndLookupCallback(t *testing.T) {
	s := session.NewStore()
	s.Open("sess-1")
	defer s.Close("sess-1")

	s.RegisterCallback("sess-1", fakeCallback("weather"))

	cb, ok := s.Callback("sess-1", "weather")
	assert.True(t, ok)
	assert.Equal(t, "weather", cb.Definition().Name)

	_, ok = s.Callback("sess-1", "missing")
	assert.False(t, ok)
}

func TestStore_CloseRemovesAllState(t *testing.T) {
	s := session.NewStore()
	s.Open("sess-1")
	s.RegisterCallback("sess-1", fakeCallback("weather"))
	s.Close("sess-1")

	_, ok := s.Callback("sess-1", "weather")
	assert.False(t, ok)
	assert.Empty(t, s.Discovered("sess-1"))
}

func TestDiscoveredSet_NonAccumulatingReplacesEachTurn(t *testing.T) {
	s := session.NewStore()
	s.Open("sess-1")
	defer s.Close("sess-1")

	s.UpdateDiscovered("sess-1", []string{"currentTime"}, false)
	assert.Equal(t, []string{"currentTime"}, s.Discovered("sess-1"))

	s.UpdateDiscovered("sess-1", []string{"weather"}, false)
	assert.Equal(t, []string{"weather"}, s.Discovered("sess-1"))
}

func TestDiscoveredSet_AccumulatingGrowsAndDedupes(t *testing.T) {
	s := session.NewStore()
	s.Open("sess-1")
	defer s.Close("sess-1")

	s.UpdateDiscovered("sess-1", []string{"currentTime"}, true)
	s.UpdateDiscovered("sess-1", []string{"weather", "currentTime"}, true)

	assert.Equal(t, []string{"currentTime", "weather"}, s.Discovered("sess-1"))
}

func TestStore_SessionIsolation(t *testing.T) {
	s := session.NewStore()
	s.Open("A")
	s.Open("B")
	defer s.Close("A")
	defer s.Close("B")

	s.RegisterCallback("A", fakeCallback("alpha"))
	s.RegisterCallback("B", fakeCallback("beta"))

	_, okA := s.Callback("A", "beta")
	_, okB := s.Callback("B", "alpha")
	assert.False(t, okA)
	assert.False(t, okB)
}
