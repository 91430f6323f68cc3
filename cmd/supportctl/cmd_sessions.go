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
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

var (
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	turnMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session administration",
}

var sessionsHistoryCmd = &cobra.Command{
	Use:   "history <sessionId>",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var out struct {
			SessionId string                 `json:"session_id"`
			Turns     []datatypes.TurnRecord `json:"turns"`
		}
		url := fmt.Sprintf("%s/api/v1/sessions/%s/history", serverURL, args[0])
		if err := getJSON(url, &out); err != nil {
			log.Fatalf("Failed to load history: %v", err)
		}
		if len(out.Turns) == 0 {
			fmt.Println("No recorded turns for", args[0])
			return
		}

		for _, turn := range out.Turns {
			ts := time.UnixMilli(turn.Timestamp).Format(time.RFC3339)
			fmt.Println(turnMetaStyle.Render(fmt.Sprintf("[%s model=%s intent=%s]",
				ts, turn.Model, turn.Intent)))
			fmt.Println(questionStyle.Render("Q: ") + turn.Question)
			fmt.Println("A: " + turn.Answer)
			fmt.Println()
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <sessionId>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := fmt.Sprintf("%s/api/v1/sessions/%s", serverURL, args[0])
		if err := deleteJSON(url); err != nil {
			log.Fatalf("Failed to delete session: %v", err)
		}
		fmt.Println("Deleted session", args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsHistoryCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
