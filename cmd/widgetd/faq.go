package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
)

func newFAQCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "faq [term]",
		Short: "Search the FAQ catalog",
		Long: `Search the FAQ catalog the widget serves. Matching is case-insensitive
over questions and answers; without a term every entry is listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := widget.Catalog()
			if err != nil {
				return err
			}

			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			results := slices.Collect(widgetService.NewFaqIndex(catalog).Search(term))
			return writeFAQs(cmd.OutOrStdout(), format, results)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func writeFAQs(w io.Writer, format string, entries []widget.FaqEntry) error {
	switch strings.ToLower(format) {
	case "text":
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "no matching questions")
			return err
		}
		for i, entry := range entries {
			if _, err := fmt.Fprintf(w, "%d. %s\n   %s\n", i+1, entry.Question, entry.Answer); err != nil {
				return err
			}
		}
		return nil
	case "json":
		if entries == nil {
			entries = []widget.FaqEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
