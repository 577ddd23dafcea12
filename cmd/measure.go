// cmd/measure.go
package cmd

import (
	"context"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/spacewatch/api/schemas"
	"github.com/xkilldash9x/spacewatch/internal/measure"
	"github.com/xkilldash9x/spacewatch/internal/observability"
)

// measureReport is the output of the measure command. Selectors that match
// nothing measurable are listed in Missing.
type measureReport struct {
	Viewport schemas.Size          `json:"viewport"`
	Elements []schemas.ContentSize `json:"elements"`
	Missing  []string              `json:"missing,omitempty"`
}

func newMeasureCmd() *cobra.Command {
	var url string

	measureCmd := &cobra.Command{
		Use:   "measure [selectors...]",
		Short: "Prints the viewport size and the sizes of the given elements once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			pg, err := openPage(ctx, cfg, url, logger)
			if err != nil {
				return err
			}
			defer pg.Close(logger)

			return runMeasure(ctx, cmd.OutOrStdout(), pg.provider, args)
		},
	}

	measureCmd.Flags().StringVarP(&url, "url", "u", "", "URL of the page to measure (required)")
	_ = measureCmd.MarkFlagRequired("url")
	return measureCmd
}

func runMeasure(ctx context.Context, out io.Writer, provider measure.Provider, selectors []string) error {
	viewport, err := provider.ViewportSize(ctx)
	if err != nil {
		return fmt.Errorf("failed to measure viewport: %w", err)
	}

	els := make([]*schemas.Element, len(selectors))
	for i, selector := range selectors {
		els[i] = elementFor(selector)
	}
	sizes := provider.ElementsSizes(ctx, els)

	report := measureReport{Viewport: viewport, Elements: sizes}
	if report.Elements == nil {
		report.Elements = []schemas.ContentSize{}
	}

	measured := make(map[*schemas.Element]bool, len(sizes))
	for _, cs := range sizes {
		measured[cs.Content] = true
	}
	for _, el := range els {
		if !measured[el] {
			report.Missing = append(report.Missing, el.Selector)
		}
	}

	enc := json.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
