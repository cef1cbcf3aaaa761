package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/villageroaster/bakeboard/internal/imaging"
	"github.com/villageroaster/bakeboard/internal/menu"
	"github.com/villageroaster/bakeboard/internal/ocr"
	"github.com/villageroaster/bakeboard/internal/plan"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "OCR a local bake list photo and show the resolved plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		noMatch, _ := cmd.Flags().GetBool("no-match")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		extractor, err := ocr.NewExtractor(cfg.OCR)
		if err != nil {
			return err
		}

		desc, err := imaging.Describe(data)
		if err != nil {
			desc = "unrecognised (" + err.Error() + ")"
		}

		img := imaging.New(cfg.Image.Quality, cfg.Image.MaxDimension).Normalize(data, filepath.Base(args[0]))
		text, err := extractor.ExtractText(ctx, img)
		if err != nil {
			return eris.Wrap(err, "ocr")
		}
		candidates := plan.ExtractCandidates(text)

		var items []string
		if !noMatch {
			names, err := menu.FromConfig(cfg.Menu).Load(ctx)
			if err != nil {
				return eris.Wrap(err, "load menu")
			}
			items = plan.NewMatcher(cfg.Match.Threshold).Match(candidates, names)
		}

		formatOCRResult(os.Stdout, desc, text, candidates, items, !noMatch)
		return nil
	},
}

func init() {
	ocrCmd.Flags().Bool("no-match", false, "skip menu reconciliation")
	rootCmd.AddCommand(ocrCmd)
}

// formatOCRResult writes the source image summary, the raw markdown, the
// extracted candidates and, when matching ran, the resolved plan.
func formatOCRResult(w io.Writer, image, text string, candidates, items []string, matched bool) {
	_, _ = fmt.Fprintf(w, "== Image ==\n%s\n\n", image)
	_, _ = fmt.Fprintln(w, "== OCR text ==")
	_, _ = fmt.Fprintln(w, text)
	_, _ = fmt.Fprintf(w, "\n== Candidates (%d) ==\n", len(candidates))
	for _, c := range candidates {
		_, _ = fmt.Fprintf(w, "  %s\n", c)
	}
	if !matched {
		return
	}
	_, _ = fmt.Fprintf(w, "\n== Plan (%d) ==\n", len(items))
	for i, it := range items {
		_, _ = fmt.Fprintf(w, "  %2d. %s\n", i+1, it)
	}
}
