package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/birucan/lawcite"
)

var (
	queryAI   bool
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query <file> <question>",
	Short: "Answer a question about a document with citations",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().BoolVar(&queryAI, "ai", true, "use model-assisted sectioning")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "sections to retrieve (0 uses the configured value)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	svc, err := lawcite.New(cfg)
	if err != nil {
		return err
	}

	opts := []lawcite.Option{lawcite.WithModelAssist(queryAI)}
	if queryTopK > 0 {
		opts = append(opts, lawcite.WithTopK(queryTopK))
	}

	res, err := svc.Query(cmd.Context(), args[1], args[0], opts...)
	var de *lawcite.DegradedError
	if errors.As(err, &de) {
		// Show what was retrieved before reporting the failure.
		res = &lawcite.QueryResult{Query: de.Query, Citations: de.Citations}
	} else if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
	} else {
		renderQueryResult(cmd.OutOrStdout(), res)
	}
	return err
}
