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

// Package snapshotdiff computes the change events between two device snapshots.
//
// Both snapshots must be sorted ascending by identity (see models.Snapshot.Sorted).
// The diff walks them with two cursors in a single merge-style pass, so every
// event is discovered, and emitted, in ascending identity order:
//
//   - an identity only in the previous snapshot yields DELETED with the old entity
//   - an identity only in the current snapshot yields CREATED with the new entity
//   - an identity in both yields UPDATED with the new entity if the payloads
//     differ anywhere, and nothing otherwise
//
// Duplicate identities inside one snapshot are not detected; the resulting
// events are unspecified.
package snapshotdiff

import (
	"iter"
	"strings"

	"github.com/kiwigrid/keta-sub001/pkg/models"
)

// Diff returns the events turning previous into current as a lazy sequence.
// Nothing is computed until the sequence is ranged over, and stopping early
// stops the scan.
func Diff(previous, current models.Snapshot) iter.Seq[models.ChangeEvent] {
	return func(yield func(models.ChangeEvent) bool) {
		c, f := 0, 0

		for c < len(previous) && f < len(current) {
			old, fresh := previous[c], current[f]

			switch cmp := strings.Compare(old.GUID(), fresh.GUID()); {
			case cmp < 0:
				c++
				if !yield(models.NewChangeEvent(models.Deleted, old)) {
					return
				}
			case cmp > 0:
				f++
				if !yield(models.NewChangeEvent(models.Created, fresh)) {
					return
				}
			default:
				c++
				f++
				if !old.Equal(fresh) && !yield(models.NewChangeEvent(models.Updated, fresh)) {
					return
				}
			}
		}

		for ; c < len(previous); c++ {
			if !yield(models.NewChangeEvent(models.Deleted, previous[c])) {
				return
			}
		}
		for ; f < len(current); f++ {
			if !yield(models.NewChangeEvent(models.Created, current[f])) {
				return
			}
		}
	}
}

// Changes collects Diff into a slice.
func Changes(previous, current models.Snapshot) []models.ChangeEvent {
	var events []models.ChangeEvent
	for event := range Diff(previous, current) {
		events = append(events, event)
	}
	return events
}
