// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// TurnRecord is one completed question/answer pair kept in the session
// history, alongside the routing facts that produced the answer.
type TurnRecord struct {
	SessionId    string `json:"session_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	Model        string `json:"model,omitempty"`
	Intent       string `json:"intent,omitempty"`
	SupportLevel string `json:"support_level,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}
