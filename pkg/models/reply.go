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
	"fmt"

	"github.com/kiwigrid/keta-sub001/pkg/constants"
)

// QueryParameters are passed through to the backend untouched.
type QueryParameters map[string]any

// Request is the payload sent on a bus channel.
type Request struct {
	Action string          `json:"action"`
	Params QueryParameters `json:"params,omitempty"`
}

// Reply is the raw answer of the backend. Result and Items are pointers so
// that a missing collection can be told apart from an empty one.
type Reply struct {
	Code   int          `json:"code"`
	Result *ReplyResult `json:"result,omitempty"`
}

type ReplyResult struct {
	Items *Snapshot `json:"items,omitempty"`
}

// NewOKReply builds a successful reply carrying the given items.
func NewOKReply(items Snapshot) Reply {
	if items == nil {
		items = Snapshot{}
	}
	return Reply{Code: constants.ReplyCodeSuccess, Result: &ReplyResult{Items: &items}}
}

// FetchResult is the outcome of one fetch, decided once at the bus boundary.
// It is either Ok with a (possibly empty) snapshot or Invalid with a reason.
type FetchResult struct {
	items  Snapshot
	reason string
	ok     bool
}

func Ok(items Snapshot) FetchResult {
	if items == nil {
		items = Snapshot{}
	}
	return FetchResult{items: items, ok: true}
}

func Invalid(reason string) FetchResult {
	return FetchResult{reason: reason}
}

func (r FetchResult) IsOk() bool {
	return r.ok
}

// Items returns the fetched snapshot; the bool is false for invalid results.
func (r FetchResult) Items() (Snapshot, bool) {
	return r.items, r.ok
}

// Reason explains why the result is invalid. It is empty for Ok results.
func (r FetchResult) Reason() string {
	return r.reason
}

// ResultFromReply validates a reply: it must report the success code and carry
// a result with an items collection.
func ResultFromReply(reply Reply) FetchResult {
	if reply.Code != constants.ReplyCodeSuccess {
		return Invalid(fmt.Sprintf("unexpected reply code %d", reply.Code))
	}
	if reply.Result == nil {
		return Invalid("reply has no result")
	}
	if reply.Result.Items == nil {
		return Invalid("reply result has no items")
	}
	return Ok(*reply.Result.Items)
}
