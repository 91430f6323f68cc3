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

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

var (
	codeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	escalateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

var errorsCmd = &cobra.Command{
	Use:   "errors <model> <code>",
	Short: "Look up one error code record",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var rec datatypes.ErrorCode
		url := fmt.Sprintf("%s/api/v1/errors/%s/%s", serverURL, args[0], args[1])
		if err := getJSON(url, &rec); err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}

		fmt.Printf("%s %s (%s)\n", codeStyle.Render(rec.Code), rec.Title, rec.ModelId)
		fmt.Println("원인:", rec.Cause)
		for i, step := range rec.ResolutionSteps {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
		if rec.SupportLevel == datatypes.SupportLevel3 {
			fmt.Println(escalateStyle.Render("서비스 센터 위탁 필요 (level_3)"))
		}
		if rec.EscalationNote != "" {
			fmt.Println(rec.EscalationNote)
		}
	},
}
