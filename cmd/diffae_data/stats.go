// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/diffae/pkg/facedata"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// datasetOptions returns the facedata options selected by the configuration.
func datasetOptions(c *config.Config) []facedata.Option {
	opts := []facedata.Option{facedata.WithRoot(c.General.DataRoot), facedata.WithDownload(c.Dataset.Download)}
	if c.Dataset.FramesDir != "" {
		opts = append(opts, facedata.WithFramesDir(c.Dataset.FramesDir))
	}
	return opts
}

// attrFramer is implemented by the datasets with attribute labels.
type attrFramer interface {
	AttrFrame() dataframe.DataFrame
}

// attrStat is the frequency of one binary attribute.
type attrStat struct {
	Name      string
	Positives int
	Fraction  float64
}

// attributeStats returns the frequency of each attribute column (all but the first, the index),
// sorted from the most to the least frequent.
func attributeStats(df dataframe.DataFrame) []attrStat {
	names := df.Names()
	if len(names) <= 1 || df.Nrow() == 0 {
		return nil
	}
	stats := make([]attrStat, 0, len(names)-1)
	for _, name := range names[1:] {
		col := df.Col(name)
		positives := 0
		for _, v := range col.Float() {
			if v > 0 {
				positives++
			}
		}
		stats = append(stats, attrStat{Name: name, Positives: positives, Fraction: float64(positives) / float64(df.Nrow())})
	}
	slices.SortStableFunc(stats, func(a, b attrStat) int {
		switch {
		case a.Fraction > b.Fraction:
			return -1
		case a.Fraction < b.Fraction:
			return 1
		}
		return 0
	})
	return stats
}

// plotAttributes saves a bar chart of the attribute frequencies to path. The format is
// given by the extension (png, svg, pdf, ...).
func plotAttributes(title string, stats []attrStat, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "fraction of images"
	p.Y.Min, p.Y.Max = 0, 1
	values := make(plotter.Values, len(stats))
	names := make([]string, len(stats))
	for i, s := range stats {
		values[i], names[i] = s.Fraction, s.Name
	}
	bars, err := plotter.NewBarChart(values, vg.Points(8))
	if err != nil {
		return errors.Wrap(err, "creating bar chart")
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars, plotter.NewGrid())
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 1.2
	p.X.Tick.Label.XAlign = -1
	width := vg.Length(len(stats)) * 12 * vg.Millimeter / 4
	if err := p.Save(max(width, 6*vg.Inch), 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %q", path)
	}
	return nil
}

// printStats prints the summary and attribute statistics of the dataset to out.
func printStats(ctx context.Context, out io.Writer, c *config.Config, plotPath string) error {
	ds, err := facedata.New(ctx, c.Dataset.Name, c.Dataset.Split, nil, datasetOptions(c)...)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, titleStyle.Render("Summary"))
	summary := newTable(nil, lipgloss.Right, lipgloss.Left)
	summary.AddRow(false, "dataset", ds.Name())
	summary.AddRow(false, "root", c.General.DataRoot)
	summary.AddRow(false, "# images", humanize.Comma(int64(ds.Len())))
	if ds.Len() > 0 {
		sample, err := ds.Item(0)
		if err != nil {
			return err
		}
		size := sample.Image.Bounds().Size()
		summary.AddRow(false, "image size", fmt.Sprintf("%dx%d", size.X, size.Y))
		summary.AddRow(false, "label size", fmt.Sprintf("%d", len(sample.Label)))
		summary.AddRow(false, "raw bytes / image", humanize.Bytes(uint64(rawBytes(size))))
	}
	fmt.Fprintln(out, summary.Render())

	framer, ok := ds.(attrFramer)
	if !ok {
		if plotPath != "" {
			return errors.Wrapf(faces.ErrValue, "dataset %q has no attributes to plot", ds.Name())
		}
		return nil
	}
	stats := attributeStats(framer.AttrFrame())
	fmt.Fprintln(out, titleStyle.Render("Attributes"))
	table := newTable([]string{"Attribute", "Positives", "Fraction"}, lipgloss.Left, lipgloss.Right)
	for _, s := range stats {
		table.AddRow(false, s.Name, humanize.Comma(int64(s.Positives)), fmt.Sprintf("%.1f%%", 100*s.Fraction))
	}
	fmt.Fprintln(out, table.Render())
	if plotPath != "" {
		return plotAttributes(fmt.Sprintf("Attributes of %s", ds.Name()), stats, plotPath)
	}
	return nil
}

// rawBytes of an RGB image of the given size, decoded as float32.
func rawBytes(size image.Point) int {
	return size.X * size.Y * 3 * 4
}

func newStatsCmd(cfg **config.Config) *cobra.Command {
	var plotPath string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Prints the number of images, their sizes and the attribute frequencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStats(cmd.Context(), cmd.OutOrStdout(), *cfg, plotPath)
		},
	}
	cmd.Flags().StringVar(&plotPath, "plot", "", "Saves a bar chart of the attribute frequencies to this file (png, svg or pdf).")
	return cmd
}
