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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
)

var chatSessionId string

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// chatCmd runs an interactive streaming chat against the orchestrator.
//
// # Description
//
// Each line typed becomes one turn. Stage transitions render as dim
// progress markers, answer tokens print as they arrive, and the final
// event prints the routing facts (model, intent, support level). The
// session ID is reused across turns so the server keeps context.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive support chat (streaming)",
	Run:   runChatCommand,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionId, "session", "",
		"Resume an existing session ID")
}

func runChatCommand(cmd *cobra.Command, args []string) {
	fmt.Println("Connected to", serverURL, "- type a question, or /quit to exit.")
	stdin := bufio.NewReader(os.Stdin)

	for {
		fmt.Print(promptStyle.Render("you> "), "")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return
		}

		if err := streamTurn(line); err != nil {
			fmt.Println(errorStyle.Render("error: " + err.Error()))
		}
	}
}

// streamTurn posts one message to the streaming endpoint and renders
// the event stream until turn_completed.
func streamTurn(message string) error {
	payload, err := json.Marshal(datatypes.ChatRequest{
		Message:   message,
		SessionId: chatSessionId,
	})
	if err != nil {
		return err
	}

	resp, err := httpClient.Post(serverURL+"/api/v1/chat/stream",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event datatypes.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}

		switch event.Type {
		case datatypes.EventStageStarted:
			fmt.Println(stageStyle.Render("… " + event.Stage))
		case datatypes.EventAnswerToken:
			fmt.Print(event.Token)
		case datatypes.EventTurnCompleted:
			fmt.Println()
			if event.Error != "" {
				fmt.Println(errorStyle.Render("turn failed: " + event.Error))
				return nil
			}
			if event.Final != nil {
				chatSessionId = event.Final.SessionId
				facts := []string{"session " + event.Final.SessionId}
				if event.Final.Model != "" {
					facts = append(facts, "model "+event.Final.Model)
				}
				if event.Final.Intent != "" {
					facts = append(facts, "intent "+event.Final.Intent)
				}
				if event.Final.SupportLevel != "" {
					facts = append(facts, "support "+event.Final.SupportLevel)
				}
				fmt.Println(metaStyle.Render("[" + strings.Join(facts, " · ") + "]"))
			}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return fmt.Errorf("stream ended without a completion event")
}
