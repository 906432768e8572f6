package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/birucan/lawcite"
)

var (
	sectionsAI    bool
	sectionsIndex bool
	sectionsJSON  bool
)

var sectionsCmd = &cobra.Command{
	Use:   "sections <file>",
	Short: "Split a document into labelled sections",
	Long: `Extracts text from the document and splits it into sections using the
law-header and subsection patterns, or the language model with --ai.
With --index the sections are also embedded, as POST /create_documents does.`,
	Args: cobra.ExactArgs(1),
	RunE: runSections,
}

func init() {
	sectionsCmd.Flags().BoolVar(&sectionsAI, "ai", false, "use model-assisted sectioning")
	sectionsCmd.Flags().BoolVar(&sectionsIndex, "index", false, "also embed the sections into a vector index")
	sectionsCmd.Flags().BoolVar(&sectionsJSON, "json", false, "output sections as JSON")
	rootCmd.AddCommand(sectionsCmd)
}

func runSections(cmd *cobra.Command, args []string) error {
	svc, err := lawcite.New(cfg)
	if err != nil {
		return err
	}

	var sections []lawcite.Section
	if sectionsIndex {
		sections, err = svc.CreateDocuments(cmd.Context(), args[0], lawcite.WithModelAssist(sectionsAI))
	} else {
		sections, err = svc.Sections(cmd.Context(), args[0], lawcite.WithModelAssist(sectionsAI))
	}
	if err != nil {
		return err
	}

	if sectionsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sections)
	}
	renderSections(cmd.OutOrStdout(), sections)
	return nil
}
