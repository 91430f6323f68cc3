// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy_engine

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSupport/services/policy_engine/enforcement"
)

// PolicyEngine is the deterministic answer-safety scanner. It holds the
// compiled rule sets and checks generated answers against them before
// release.
type PolicyEngine struct {
	RuleSets []RuleSet
}

// NewPolicyEngine initializes a new instance of the PolicyEngine.
//
// The rule definitions are embedded in the binary via the enforcement
// package, so this function takes no arguments. It performs the
// following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts rule sets by priority.
//
// Returns an error if the embedded YAML is malformed or contains
// invalid regex.
func NewPolicyEngine() (*PolicyEngine, error) {
	var ruleFile SafetyRuleFile
	if err := yaml.Unmarshal(enforcement.AnswerSafetyRules, &ruleFile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rules file: %w", err)
	}

	if err := ruleFile.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex %w", err)
	}

	ruleFile.SortByPriority()

	engine := &PolicyEngine{RuleSets: ruleFile.RuleSets}
	return engine, nil
}

// ScanAnswer checks an answer against every rule set applicable to the
// support-level context and returns one violation description per
// triggered rule set. A rule set reports at most once per answer: the
// first matching pattern wins, in priority order.
func (e *PolicyEngine) ScanAnswer(answer, supportLevel string) []string {
	var violations []string
	for _, rs := range e.RuleSets {
		if rs.AppliesTo != "" && rs.AppliesTo != supportLevel {
			continue
		}
		for i, re := range rs.CompiledPatterns {
			if match := re.FindString(answer); match != "" {
				violations = append(violations, fmt.Sprintf(
					"Level 3 안전 위반: '%s' — %s", match, rs.Patterns[i].Description))
				break
			}
		}
	}
	return violations
}

// ScanAnswerDetailed returns every individual pattern hit with its rule
// metadata, for audit logging and rule tuning.
func (e *PolicyEngine) ScanAnswerDetailed(answer, supportLevel string) []Finding {
	var findings []Finding
	for _, rs := range e.RuleSets {
		if rs.AppliesTo != "" && rs.AppliesTo != supportLevel {
			continue
		}
		for _, pattern := range rs.Patterns {
			if match := pattern.compiledPattern.FindString(answer); match != "" {
				findings = append(findings, Finding{
					MatchedContent:     match,
					RuleSetName:        rs.Name,
					PatternId:          pattern.Id,
					PatternDescription: pattern.Description,
					Confidence:         pattern.Confidence,
				})
			}
		}
	}
	return findings
}
