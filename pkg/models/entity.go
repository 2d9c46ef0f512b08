// Copyright 2025 UMH Systems GmbH
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

package models

import (
	"reflect"
	"slices"
	"strings"

	"github.com/kiwigrid/keta-sub001/pkg/constants"
)

// Entity is a device (or any other remote object) as returned by the backend.
// Apart from the identity field it is an opaque payload.
type Entity map[string]any

// GUID returns the identity of the entity, or "" if it carries none.
func (e Entity) GUID() string {
	guid, _ := e[constants.IdentityField].(string)
	return guid
}

// Equal reports whether both entities are structurally identical over the whole payload.
func (e Entity) Equal(other Entity) bool {
	return reflect.DeepEqual(map[string]any(e), map[string]any(other))
}

// Snapshot is the device collection fetched in one poll cycle.
type Snapshot []Entity

// Sorted returns a copy of the snapshot ordered ascending by identity.
// The entities themselves are shared, not copied.
func (s Snapshot) Sorted() Snapshot {
	sorted := slices.Clone(s)
	slices.SortStableFunc(sorted, compareIdentity)
	return sorted
}

// IsSorted reports whether the snapshot is ordered ascending by identity.
func (s Snapshot) IsSorted() bool {
	return slices.IsSortedFunc(s, compareIdentity)
}

// GUIDs lists the identities in snapshot order.
func (s Snapshot) GUIDs() []string {
	guids := make([]string, 0, len(s))
	for _, e := range s {
		guids = append(guids, e.GUID())
	}
	return guids
}

func compareIdentity(a, b Entity) int {
	return strings.Compare(a.GUID(), b.GUID())
}
