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

package snapshotdiff_test

import (
	"fmt"
	"math/rand"
	"slices"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kiwigrid/keta-sub001/pkg/models"
	"github.com/kiwigrid/keta-sub001/pkg/snapshotdiff"
)

type change struct {
	kind models.ChangeKind
	guid string
	v    any
}

func summarize(events []models.ChangeEvent) []change {
	out := make([]change, 0, len(events))
	for _, e := range events {
		out = append(out, change{kind: e.Kind(), guid: e.GUID(), v: e.Entity()["v"]})
	}
	return out
}

func device(guid string, v int) models.Entity {
	return models.Entity{"guid": guid, "v": v}
}

// randomSnapshot builds a sorted snapshot with unique identities drawn from a small pool,
// so that two random snapshots overlap a lot.
func randomSnapshot(r *rand.Rand) models.Snapshot {
	var snapshot models.Snapshot
	for i := 0; i < 20; i++ {
		if r.Intn(2) == 0 {
			continue
		}
		snapshot = append(snapshot, device(fmt.Sprintf("dev-%02d", i), r.Intn(3)))
	}
	return snapshot.Sorted()
}

func guidSet(s models.Snapshot) map[string]models.Entity {
	set := make(map[string]models.Entity, len(s))
	for _, e := range s {
		set[e.GUID()] = e
	}
	return set
}

var _ = Describe("Diff", func() {
	DescribeTable("reference scenarios",
		func(previous, current models.Snapshot, expected []change) {
			Expect(summarize(snapshotdiff.Changes(previous, current))).To(Equal(expected))
		},
		Entry("one removed, one added, one unchanged",
			models.Snapshot{device("1", 1), device("2", 1)},
			models.Snapshot{device("2", 1), device("3", 1)},
			[]change{{models.Deleted, "1", 1}, {models.Created, "3", 1}}),
		Entry("everything new",
			models.Snapshot{},
			models.Snapshot{device("1", 1)},
			[]change{{models.Created, "1", 1}}),
		Entry("payload changed",
			models.Snapshot{device("1", 1)},
			models.Snapshot{device("1", 2)},
			[]change{{models.Updated, "1", 2}}),
		Entry("everything gone",
			models.Snapshot{device("1", 1)},
			models.Snapshot{},
			[]change{{models.Deleted, "1", 1}}),
		Entry("nil previous behaves like empty",
			nil,
			models.Snapshot{{"guid": "1"}},
			[]change{{models.Created, "1", nil}}),
	)

	It("emits the removed entity for deletions and the new one for updates", func() {
		old := device("1", 1)
		fresh := device("1", 2)

		events := snapshotdiff.Changes(models.Snapshot{old, device("2", 1)}, models.Snapshot{fresh})

		Expect(events).To(HaveLen(2))
		Expect(events[0].Kind()).To(Equal(models.Updated))
		Expect(events[0].Entity()).To(Equal(fresh))
		Expect(events[1].Kind()).To(Equal(models.Deleted))
		Expect(events[1].Entity()["v"]).To(Equal(1))
	})

	It("detects changes deep inside the payload", func() {
		previous := models.Snapshot{{"guid": "1", "tagValues": map[string]any{"a": 1.0}}}
		current := models.Snapshot{{"guid": "1", "tagValues": map[string]any{"a": 1.5}}}

		Expect(summarize(snapshotdiff.Changes(previous, current))).To(Equal([]change{{models.Updated, "1", nil}}))
	})

	It("interleaves events in ascending identity order", func() {
		previous := models.Snapshot{device("a", 1), device("c", 1), device("e", 1), device("f", 1)}
		current := models.Snapshot{device("b", 1), device("c", 2), device("d", 1), device("f", 1), device("g", 1)}

		Expect(summarize(snapshotdiff.Changes(previous, current))).To(Equal([]change{
			{models.Deleted, "a", 1},
			{models.Created, "b", 1},
			{models.Updated, "c", 2},
			{models.Created, "d", 1},
			{models.Deleted, "e", 1},
			{models.Created, "g", 1},
		}))
	})

	It("is lazy and stops when the consumer stops", func() {
		previous := models.Snapshot{device("1", 1), device("2", 1), device("3", 1)}

		seen := 0
		for range snapshotdiff.Diff(previous, nil) {
			seen++
			if seen == 2 {
				break
			}
		}

		Expect(seen).To(Equal(2))
	})

	Describe("properties over random snapshots", func() {
		var r *rand.Rand

		BeforeEach(func() {
			r = rand.New(rand.NewSource(GinkgoRandomSeed()))
		})

		It("is empty when diffing a snapshot against itself", func() {
			for i := 0; i < 200; i++ {
				s := randomSnapshot(r)
				Expect(snapshotdiff.Changes(s, s)).To(BeEmpty())
			}
		})

		It("is complete, minimal and ordered", func() {
			for i := 0; i < 500; i++ {
				previous, current := randomSnapshot(r), randomSnapshot(r)
				prevSet, currSet := guidSet(previous), guidSet(current)

				events := snapshotdiff.Changes(previous, current)

				var deleted, created, updated []string
				for _, e := range events {
					switch e.Kind() {
					case models.Deleted:
						deleted = append(deleted, e.GUID())
					case models.Created:
						created = append(created, e.GUID())
					case models.Updated:
						updated = append(updated, e.GUID())
					}
				}

				var onlyPrev, onlyCurr, changed []string
				for guid, old := range prevSet {
					fresh, ok := currSet[guid]
					switch {
					case !ok:
						onlyPrev = append(onlyPrev, guid)
					case !old.Equal(fresh):
						changed = append(changed, guid)
					}
				}
				for guid := range currSet {
					if _, ok := prevSet[guid]; !ok {
						onlyCurr = append(onlyCurr, guid)
					}
				}

				Expect(deleted).To(ConsistOf(onlyPrev))
				Expect(created).To(ConsistOf(onlyCurr))
				Expect(updated).To(ConsistOf(changed))

				guids := make([]string, 0, len(events))
				for _, e := range events {
					guids = append(guids, e.GUID())
				}
				Expect(slices.IsSortedFunc(guids, strings.Compare)).To(BeTrue())
				Expect(slices.Compact(slices.Clone(guids))).To(HaveLen(len(guids)))
			}
		})
	})
})

var _ = Describe("Fingerprint", func() {
	It("is stable for structurally equal snapshots", func() {
		a := models.Snapshot{{"guid": "1", "tagValues": map[string]any{"x": 1.0, "y": 2.0}}}
		b := models.Snapshot{{"tagValues": map[string]any{"y": 2.0, "x": 1.0}, "guid": "1"}}

		fa, err := snapshotdiff.Fingerprint(a)
		Expect(err).NotTo(HaveOccurred())
		fb, err := snapshotdiff.Fingerprint(b)
		Expect(err).NotTo(HaveOccurred())

		Expect(fa).To(Equal(fb))
	})

	It("changes when the payload changes", func() {
		fa, _ := snapshotdiff.Fingerprint(models.Snapshot{device("1", 1)})
		fb, _ := snapshotdiff.Fingerprint(models.Snapshot{device("1", 2)})

		Expect(fa).NotTo(Equal(fb))
	})

	It("treats nil and empty snapshots alike", func() {
		fa, _ := snapshotdiff.Fingerprint(nil)
		fb, _ := snapshotdiff.Fingerprint(models.Snapshot{})

		Expect(fa).To(Equal(fb))
	})
})
