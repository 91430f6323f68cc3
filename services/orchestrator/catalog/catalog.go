// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the static profile data for the supported InBody
// device models.
//
// The catalog is loaded once from an embedded YAML file and is read-only
// afterwards. Every other component that needs model attributes (tier,
// tone profile, install type, measurement items) looks them up here;
// nothing else in the system is allowed to invent model metadata.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

// Tier values for Profile.Tier.
const (
	TierEntry        = "entry"
	TierProfessional = "professional"
)

// Install types for Profile.InstallType.
const (
	InstallFoldable  = "foldable"
	InstallSeparable = "separable"
)

// Tone profiles for Profile.ToneProfile.
const (
	ToneCasual       = "casual"
	ToneProfessional = "professional"
)

// Profile describes one supported device model.
//
// # Fields
//
//   - ModelID: canonical identifier, e.g. "270S". Uppercase.
//   - Name: display name, e.g. "InBody 270S".
//   - Tier: "entry" or "professional".
//   - InstallType: "foldable" or "separable".
//   - ToneProfile: "casual" or "professional".
//   - MeasurementItems: ordered measurement vocabulary for the model.
//   - Description: one-line description used in selection prompts.
type Profile struct {
	ModelID          string   `yaml:"model_id" json:"model_id"`
	Name             string   `yaml:"name" json:"name"`
	Tier             string   `yaml:"tier" json:"tier"`
	InstallType      string   `yaml:"install_type" json:"install_type"`
	ToneProfile      string   `yaml:"tone_profile" json:"tone_profile"`
	MeasurementItems []string `yaml:"measurement_items" json:"measurement_items"`
	Description      string   `yaml:"description" json:"description"`
}

type catalogFile struct {
	Models []Profile `yaml:"models"`
}

// Catalog is the read-only set of supported model profiles.
//
// # Thread Safety
//
// Safe for concurrent use after Load() returns; no mutation methods exist.
type Catalog struct {
	profiles map[string]Profile
	ids      []string
	matcher  *regexp.Regexp
}

// Load parses the embedded model catalog.
//
// # Outputs
//
//   - *Catalog: the loaded catalog.
//   - error: non-nil if the embedded YAML is malformed or a profile is
//     missing required attributes. This is a startup-fatal condition.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(modelsYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	c := &Catalog{profiles: make(map[string]Profile, len(file.Models))}
	for _, p := range file.Models {
		if p.ModelID == "" || p.Tier == "" || p.ToneProfile == "" {
			return nil, fmt.Errorf("model catalog entry %q is missing required fields", p.ModelID)
		}
		if _, dup := c.profiles[p.ModelID]; dup {
			return nil, fmt.Errorf("duplicate model catalog entry %q", p.ModelID)
		}
		c.profiles[p.ModelID] = p
		c.ids = append(c.ids, p.ModelID)
	}
	sort.Strings(c.ids)

	// Whole-token matcher over all IDs. \b does not work against the
	// digit-led IDs ("580" inside "15800"), so the boundary is expressed
	// explicitly as not-alphanumeric on both sides.
	escaped := make([]string, 0, len(c.ids))
	for _, id := range c.ids {
		escaped = append(escaped, regexp.QuoteMeta(id))
	}
	pattern := `(?i)(^|[^0-9A-Za-z])(` + strings.Join(escaped, "|") + `)($|[^0-9A-Za-z])`
	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to compile model matcher: %w", err)
	}
	c.matcher = matcher

	return c, nil
}

// Get returns the profile for a model ID.
//
// # Outputs
//
//   - Profile: the profile, zero-valued when not found.
//   - bool: true when the model is in the catalog.
func (c *Catalog) Get(modelID string) (Profile, bool) {
	p, ok := c.profiles[strings.ToUpper(modelID)]
	return p, ok
}

// IsSupported reports whether the given ID names a catalog model.
func (c *Catalog) IsSupported(modelID string) bool {
	_, ok := c.profiles[strings.ToUpper(modelID)]
	return ok
}

// IDs returns all model IDs in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Profiles returns all profiles in ID order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.profiles[id])
	}
	return out
}

// MatchModels scans free-form text for catalog model IDs appearing as
// whole tokens (case-insensitive) and returns the distinct canonical IDs
// in sorted order.
//
// # Description
//
// This is the lexical pre-match used by the model router: a single match
// identifies the device without an LLM call, two or more matches mean
// the user is asking for a comparison.
func (c *Catalog) MatchModels(text string) []string {
	seen := make(map[string]bool)
	rest := text
	for {
		loc := c.matcher.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		id := strings.ToUpper(rest[loc[4]:loc[5]])
		seen[id] = true
		// Resume right after the matched ID so adjacent mentions
		// ("270S/580") are not swallowed by the trailing boundary.
		rest = rest[loc[5]:]
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
