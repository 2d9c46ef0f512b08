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
	"slices"
	"strconv"

	"github.com/kiwigrid/keta-sub001/pkg/constants"
)

// TagValue is a single entry of a device's tag-value collection.
type TagValue struct {
	DeviceGUID string `json:"deviceGuid"`
	Tag        string `json:"tag"`
	Value      any    `json:"value"`
}

// TagValuesOf extracts the tag values of a device entity.
//
// The collection may be a map keyed by tag name or a list. List elements that
// are objects take their tag name from a "tag" or "name" field, anything else
// is named by its position. Map entries are returned in tag name order.
func TagValuesOf(e Entity) []TagValue {
	guid := e.GUID()

	switch collection := e[constants.TagValuesField].(type) {
	case map[string]any:
		return tagValuesFromMap(guid, collection)
	case Entity:
		return tagValuesFromMap(guid, collection)
	case []any:
		values := make([]TagValue, 0, len(collection))
		for i, raw := range collection {
			values = append(values, TagValue{DeviceGUID: guid, Tag: tagNameOf(raw, i), Value: raw})
		}
		return values
	default:
		return nil
	}
}

func tagValuesFromMap(guid string, collection map[string]any) []TagValue {
	names := make([]string, 0, len(collection))
	for name := range collection {
		names = append(names, name)
	}
	slices.Sort(names)

	values := make([]TagValue, 0, len(names))
	for _, name := range names {
		values = append(values, TagValue{DeviceGUID: guid, Tag: name, Value: collection[name]})
	}
	return values
}

func tagNameOf(raw any, index int) string {
	if obj, ok := raw.(map[string]any); ok {
		for _, key := range []string{"tag", "name"} {
			if name, ok := obj[key].(string); ok && name != "" {
				return name
			}
		}
	}
	return strconv.Itoa(index)
}
