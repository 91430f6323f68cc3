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

// Support levels attached to troubleshooting outcomes. Level 1 means the
// user can resolve the issue themselves; level 3 means the device must go
// to an authorized service center.
const (
	SupportLevel1 = "level_1"
	SupportLevel3 = "level_3"
)

// ErrorCode is one row of the per-model error-code table.
type ErrorCode struct {
	Code            string   `json:"code"`
	ModelId         string   `json:"model_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Cause           string   `json:"cause"`
	SupportLevel    string   `json:"support_level"`
	ResolutionSteps []string `json:"resolution_steps"`
	EscalationNote  string   `json:"escalation_note,omitempty"`
}

// PeripheralCompat is one row of the per-model peripheral compatibility
// table.
type PeripheralCompat struct {
	ModelId          string   `json:"model_id"`
	PeripheralType   string   `json:"peripheral_type"`
	PeripheralName   string   `json:"peripheral_name"`
	IsCompatible     bool     `json:"is_compatible"`
	ConnectionMethod string   `json:"connection_method,omitempty"`
	SetupSteps       []string `json:"setup_steps,omitempty"`
}

// Passage is one ranked manual chunk returned by retrieval.
type Passage struct {
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	Page       int    `json:"page"`
}
