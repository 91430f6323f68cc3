// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command supportctl is the operator CLI for the support orchestrator.
//
// # Examples
//
//	supportctl chat                      # Interactive support chat
//	supportctl models                    # List supported device models
//	supportctl errors 270S E001          # Look up one error code
//	supportctl sessions history sess_x   # Print a session transcript
//	supportctl ingest manual.txt --model 970S
package main

import (
	"log"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "supportctl",
	Short: "Operator CLI for the Aleutian device-support service",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server",
		"http://localhost:12210", "Orchestrator base URL")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(errorsCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(ingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
