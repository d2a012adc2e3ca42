/*
Copyright © 2025 Your Name

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command for the newsradar CLI.
var rootCmd = &cobra.Command{
	Use:   "newsradar",
	Short: "Detect hot financial-news stories and enrich them into publishable drafts",
	Long: `newsradar runs the ingestion-to-ranking pipeline: scheduled scraping,
duplicate-aware clustering, multi-factor hotness scoring, and LLM-driven
enrichment of the resulting clusters into short editorial drafts.`,
}

// Execute adds all child commands to the root command and runs it. Exits 0
// on success, 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./newsradar.yaml)")
}
