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

package poller

import (
	"time"

	"github.com/kiwigrid/keta-sub001/pkg/metrics"
	"github.com/kiwigrid/keta-sub001/pkg/models"
)

// TagValueConsumer receives the tag values of created and updated devices.
type TagValueConsumer func(value models.TagValue)

// StartTagValues polls like Start but only reports tag values. For every
// created or updated device each element of its tag value collection is
// handed to consumer. Deleted devices report nothing.
func (p *DevicePoller) StartTagValues(channel string, params models.QueryParameters, consumer TagValueConsumer, interval time.Duration) *Handle {
	log := p.log.With("channel", channel)

	return p.Start(channel, params, func(event models.ChangeEvent) {
		for _, value := range TagValues(event) {
			metrics.RecordTagValue(channel)
			guard(log, channel, func() {
				consumer(value)
			})
		}
	}, interval)
}

// TagValues projects a change event onto the tag values it carries.
func TagValues(event models.ChangeEvent) []models.TagValue {
	switch event.Kind() {
	case models.Created, models.Updated:
		return models.TagValuesOf(event.Entity())
	default:
		return nil
	}
}
