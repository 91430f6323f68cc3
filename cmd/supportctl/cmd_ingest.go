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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	ingestModel    string
	ingestCategory string
	ingestPage     int
)

// ingestCmd uploads one extracted manual text file. PDF extraction is
// out of scope here; feed it plain text or markdown.
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Upload a manual document for retrieval",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		content, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", args[0], err)
		}

		body := map[string]interface{}{
			"model":    ingestModel,
			"category": ingestCategory,
			"source":   filepath.Base(args[0]),
			"page":     ingestPage,
			"content":  string(content),
		}
		var out struct {
			ChunksStored int `json:"chunks_stored"`
		}
		if err := postJSON(serverURL+"/api/v1/manuals", body, &out); err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		fmt.Printf("Stored %d chunks from %s for model %s\n",
			out.ChunksStored, args[0], ingestModel)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestModel, "model", "", "Device model the manual belongs to (required)")
	ingestCmd.Flags().StringVar(&ingestCategory, "category", "", "Manual category (inferred from filename when empty)")
	ingestCmd.Flags().IntVar(&ingestPage, "page", 0, "Source page number")
	_ = ingestCmd.MarkFlagRequired("model")
}
