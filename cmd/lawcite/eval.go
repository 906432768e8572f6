package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/birucan/lawcite"
	"github.com/birucan/lawcite/eval"
)

var (
	evalDocument string
	evalAI       bool
	evalJSON     bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <dataset.yaml>",
	Short: "Score answers and citations against an evaluation dataset",
	Long: `Runs every question in the dataset against its document and reports
fact accuracy, context recall, cited-section recall, citation marker
validity and claim grounding.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalDocument, "document", "", "document to query (overrides the dataset)")
	evalCmd.Flags().BoolVar(&evalAI, "ai", true, "use model-assisted sectioning")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ds, err := eval.LoadDataset(args[0])
	if err != nil {
		return err
	}
	svc, err := lawcite.New(cfg)
	if err != nil {
		return err
	}

	report, err := eval.NewEvaluator(svc, lawcite.WithModelAssist(evalAI)).Run(cmd.Context(), ds, evalDocument)
	if err != nil {
		return err
	}

	if evalJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprint(cmd.OutOrStdout(), eval.FormatReport(report))
	return nil
}
