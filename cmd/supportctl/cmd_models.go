// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/catalog"
)

var (
	modelIdStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).Width(8)
	modelTierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Width(14)
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List supported device models",
	Run: func(cmd *cobra.Command, args []string) {
		var out struct {
			Models []catalog.Profile `json:"models"`
		}
		if err := getJSON(serverURL+"/api/v1/models", &out); err != nil {
			log.Fatalf("Failed to list models: %v", err)
		}

		for _, m := range out.Models {
			fmt.Printf("%s%s%s\n",
				modelIdStyle.Render(m.ModelID),
				modelTierStyle.Render(m.Tier),
				m.Description)
			if len(m.MeasurementItems) > 0 {
				fmt.Printf("        측정 항목: %s\n", strings.Join(m.MeasurementItems, ", "))
			}
		}
	},
}
