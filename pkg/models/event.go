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
	"github.com/goccy/go-json"
)

// ChangeKind classifies a ChangeEvent.
type ChangeKind string

const (
	Created ChangeKind = "CREATED"
	Updated ChangeKind = "UPDATED"
	Deleted ChangeKind = "DELETED"
)

// ChangeEvent reports one difference between two snapshots.
// For Created and Updated the entity is the new value, for Deleted it is the removed one.
type ChangeEvent struct {
	kind   ChangeKind
	entity Entity
}

func NewChangeEvent(kind ChangeKind, entity Entity) ChangeEvent {
	return ChangeEvent{kind: kind, entity: entity}
}

func (e ChangeEvent) Kind() ChangeKind {
	return e.kind
}

func (e ChangeEvent) Entity() Entity {
	return e.entity
}

// GUID is a shortcut for Entity().GUID().
func (e ChangeEvent) GUID() string {
	return e.entity.GUID()
}

type changeEventJSON struct {
	Kind   ChangeKind `json:"kind"`
	Entity Entity     `json:"entity"`
}

func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeEventJSON{Kind: e.kind, Entity: e.entity})
}

func (e *ChangeEvent) UnmarshalJSON(data []byte) error {
	var raw changeEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.kind = raw.Kind
	e.entity = raw.Entity
	return nil
}
