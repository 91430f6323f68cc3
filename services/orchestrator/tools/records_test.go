// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

func openSeededRecords(t *testing.T) *Records {
	t.Helper()
	r, err := OpenRecords("")
	if err != nil {
		t.Fatalf("OpenRecords: %v", err)
	}
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	if err := r.SeedIfEmpty(context.Background()); err != nil {
		t.Fatalf("SeedIfEmpty: %v", err)
	}
	return r
}

func TestSeedIfEmpty_Idempotent(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)
	ctx := context.Background()

	// A second run against populated tables must not duplicate rows.
	if err := r.SeedIfEmpty(ctx); err != nil {
		t.Fatalf("second SeedIfEmpty: %v", err)
	}

	codes, _, err := r.SearchErrorsBySymptom(ctx, "270S", "존재하지 않는 증상")
	if err != nil {
		t.Fatalf("SearchErrorsBySymptom: %v", err)
	}
	if len(codes) != 3 {
		t.Errorf("270S error-code count = %d, want 3 seeded rows", len(codes))
	}
}

func TestLookupErrorCode(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)
	ctx := context.Background()

	rec, err := r.LookupErrorCode(ctx, "270S", "E001")
	if err != nil {
		t.Fatalf("LookupErrorCode: %v", err)
	}
	if rec == nil {
		t.Fatal("E001 not found for 270S")
	}
	if rec.SupportLevel != datatypes.SupportLevel1 {
		t.Errorf("SupportLevel = %q, want level_1", rec.SupportLevel)
	}
	if len(rec.ResolutionSteps) == 0 {
		t.Error("resolution steps lost in the round trip")
	}

	rec, err = r.LookupErrorCode(ctx, "270S", "E010")
	if err != nil {
		t.Fatalf("LookupErrorCode: %v", err)
	}
	if rec == nil || rec.SupportLevel != datatypes.SupportLevel3 {
		t.Errorf("E010 = %+v, want a level_3 record", rec)
	}
	if rec.EscalationNote == "" {
		t.Error("escalation note lost in the round trip")
	}
}

func TestLookupErrorCode_ScopedByModel(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)
	ctx := context.Background()

	// E005 is registered for the 580 only.
	rec, err := r.LookupErrorCode(ctx, "270S", "E005")
	if err != nil {
		t.Fatalf("LookupErrorCode: %v", err)
	}
	if rec != nil {
		t.Errorf("E005 leaked across models: %+v", rec)
	}

	rec, err = r.LookupErrorCode(ctx, "580", "E005")
	if err != nil || rec == nil {
		t.Fatalf("E005 missing for 580: %+v, %v", rec, err)
	}
}

func TestLookupErrorCode_UnknownReturnsNil(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)

	rec, err := r.LookupErrorCode(context.Background(), "270S", "E999")
	if err != nil {
		t.Fatalf("LookupErrorCode: %v", err)
	}
	if rec != nil {
		t.Errorf("unknown code returned %+v, want nil", rec)
	}
}

func TestSearchErrorsBySymptom_Match(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)

	codes, matched, err := r.SearchErrorsBySymptom(context.Background(), "270S", "전극")
	if err != nil {
		t.Fatalf("SearchErrorsBySymptom: %v", err)
	}
	if !matched {
		t.Fatal("matched = false for a seeded symptom")
	}
	for _, c := range codes {
		if c.ModelId != "270S" {
			t.Errorf("result crossed models: %+v", c)
		}
	}
	if len(codes) != 1 || codes[0].Code != "E001" {
		t.Errorf("codes = %+v, want the electrode-contact record", codes)
	}
}

func TestSearchErrorsBySymptom_NoMatchFallsBackToFullList(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)

	codes, matched, err := r.SearchErrorsBySymptom(context.Background(), "770S", "블루투스")
	if err != nil {
		t.Fatalf("SearchErrorsBySymptom: %v", err)
	}
	if matched {
		t.Error("matched = true for an unseeded symptom")
	}
	if len(codes) != 2 {
		t.Errorf("fallback list has %d rows, want the model's full set", len(codes))
	}
}

func TestCheckPeripheral_Filters(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)
	ctx := context.Background()

	// Unfiltered: every seeded row for the model.
	all, err := r.CheckPeripheral(ctx, "270S", "", "")
	if err != nil {
		t.Fatalf("CheckPeripheral: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered rows = %d, want 3", len(all))
	}

	// Type filter.
	printers, err := r.CheckPeripheral(ctx, "270S", "printer", "")
	if err != nil {
		t.Fatalf("CheckPeripheral: %v", err)
	}
	if len(printers) != 1 || printers[0].PeripheralType != "printer" {
		t.Errorf("printer rows = %+v", printers)
	}

	// Name filter is a case-insensitive substring.
	byName, err := r.CheckPeripheral(ctx, "270S", "", "lookinbody")
	if err != nil {
		t.Fatalf("CheckPeripheral: %v", err)
	}
	if len(byName) != 1 || byName[0].PeripheralName != "LookInBody" {
		t.Errorf("name rows = %+v", byName)
	}
}

func TestCheckPeripheral_IncompatibleRowSurvives(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)

	rows, err := r.CheckPeripheral(context.Background(), "270S", "barcode_reader", "")
	if err != nil {
		t.Fatalf("CheckPeripheral: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %+v, want the incompatible barcode entry", rows)
	}
	if rows[0].IsCompatible {
		t.Error("barcode reader on the 270S must be flagged incompatible")
	}
	if len(rows[0].SetupSteps) != 0 {
		t.Errorf("incompatible row carries setup steps: %+v", rows[0].SetupSteps)
	}
}

func TestCheckPeripheral_UnknownModelEmpty(t *testing.T) {
	t.Parallel()
	r := openSeededRecords(t)

	rows, err := r.CheckPeripheral(context.Background(), "S10", "", "")
	if err != nil {
		t.Fatalf("CheckPeripheral: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want none for an out-of-catalog model", rows)
	}
}
