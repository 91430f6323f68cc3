// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"reflect"
	"testing"
)

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoad_EmbeddedCatalog(t *testing.T) {
	t.Parallel()
	c := mustLoad(t)

	want := []string{"270S", "580", "770S", "970S"}
	if got := c.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
	for _, id := range want {
		p, ok := c.Get(id)
		if !ok {
			t.Fatalf("Get(%s) not found", id)
		}
		if p.Tier == "" || p.ToneProfile == "" || p.InstallType == "" {
			t.Errorf("profile %s missing attributes: %+v", id, p)
		}
	}
}

func TestGet_CaseInsensitive(t *testing.T) {
	t.Parallel()
	c := mustLoad(t)

	p, ok := c.Get("270s")
	if !ok || p.ModelID != "270S" {
		t.Errorf("Get(270s) = %+v, %v", p, ok)
	}
	if !c.IsSupported("970s") {
		t.Error("IsSupported(970s) = false")
	}
	if c.IsSupported("S10") {
		t.Error("IsSupported(S10) = true for an out-of-catalog model")
	}
}

func TestProfiles_OrderedByID(t *testing.T) {
	t.Parallel()
	c := mustLoad(t)

	profiles := c.Profiles()
	ids := c.IDs()
	if len(profiles) != len(ids) {
		t.Fatalf("Profiles() length %d, IDs() length %d", len(profiles), len(ids))
	}
	for i, p := range profiles {
		if p.ModelID != ids[i] {
			t.Errorf("Profiles()[%d] = %s, want %s", i, p.ModelID, ids[i])
		}
	}
}

func TestMatchModels(t *testing.T) {
	t.Parallel()
	c := mustLoad(t)

	tests := []struct {
		text string
		want []string
	}{
		{"InBody 270S 설치 방법", []string{"270S"}},
		{"inbody 270s 좀 알려줘", []string{"270S"}},
		{"270S와 970S 중에 뭐가 좋아요?", []string{"270S", "970S"}},
		{"270S/580 비교", []string{"270S", "580"}},
		{"580이 측정 중에 꺼져요", []string{"580"}},
		// "580" inside a longer number is not a model mention.
		{"15800번 문의입니다", nil},
		{"3270S는 다른 제품이에요", nil},
		{"측정이 안 돼요", nil},
		// Duplicate mentions collapse to one ID.
		{"270S요, InBody 270S 말이에요", []string{"270S"}},
	}
	for _, tt := range tests {
		if got := c.MatchModels(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MatchModels(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
