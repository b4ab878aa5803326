// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

// Storage layout, relative to the storage root.
const (
	gamesDir     = "games"
	queueFile    = "sync_queue.json"
	eventLogsDir = "eventlogs"
)

// Live feed message types
const (
	MsgTypeScoreEvent        = "SCORE_EVENT"
	MsgTypeScoreEventDeleted = "SCORE_EVENT_DELETED"
	MsgTypeError             = "ERROR"
	MsgTypePing              = "PING"
	MsgTypePong              = "PONG"
)

// Submission types accepted by the score-events endpoint. They match the
// sync queue's mutation types.
const (
	SubmitCreate = "create"
	SubmitUpdate = "update"
	SubmitDelete = "delete"
)

const (
	mockAuthCookie = "mock_auth_user"
	maxRequestBody = 1 << 20
)
