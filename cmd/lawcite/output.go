package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/birucan/lawcite"
	"github.com/birucan/lawcite/sectioner"
)

var (
	// labelStyle for section labels and citation sources
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("81"))

	// dimStyle for muted metadata text
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// warnStyle for degraded or model-generated markers
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	// errorStyle for error prefixes
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	// answerStyle for the generated answer box
	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("81")).
			Padding(0, 1)
)

func renderSections(w io.Writer, sections []lawcite.Section) {
	if len(sections) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no sections found"))
		return
	}
	for _, s := range sections {
		header := labelStyle.Render(s.Label)
		if s.Title != "" {
			header += " " + s.Title
		}
		if s.Source == sectioner.SourceAIGenerated {
			header += " " + warnStyle.Render("(model)")
		}
		fmt.Fprintln(w, header)
		fmt.Fprintln(w, "  "+s.Content)
	}
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d sections", len(sections))))
}

func renderQueryResult(w io.Writer, res *lawcite.QueryResult) {
	fmt.Fprintln(w, dimStyle.Render("Query:")+" "+res.Query)
	if strings.TrimSpace(res.Response) == "" {
		fmt.Fprintln(w, warnStyle.Render("no answer generated"))
	} else {
		fmt.Fprintln(w, answerStyle.Render(res.Response))
	}

	if len(res.Citations) == 0 {
		return
	}
	fmt.Fprintln(w, dimStyle.Render("Citations:"))
	for i, c := range res.Citations {
		fmt.Fprintf(w, "[%d] %s %s\n", i+1, labelStyle.Render(c.Source), c.Text)
	}
}
