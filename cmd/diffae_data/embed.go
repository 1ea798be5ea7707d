// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/diffae/pkg/embeddings"
	"github.com/gomlx/diffae/pkg/facedata"
	"github.com/gomlx/diffae/pkg/faces/loader"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

func newEmbedCmd(cfg **config.Config) *cobra.Command {
	var output, weightsDir, mode string
	var imageSize int
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Extracts the InceptionV3 embeddings of the dataset images, cached in a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if output == "" {
				output = filepath.Join(c.General.DataRoot, "embeddings",
					fmt.Sprintf("%s_%s_%s.bin", c.Dataset.Name, c.Dataset.Split, mode))
			}
			if weightsDir == "" {
				weightsDir = filepath.Join(c.General.DataRoot, "inceptionv3")
			}
			ds, err := embeddings.NewCached(output, func() (*embeddings.Dataset, error) {
				images, pipeline, err := facedata.FromConfig(cmd.Context(), c, mode)
				if err != nil {
					return nil, err
				}
				if _, _, normalized := pipeline.Normalization(); normalized {
					klog.Infof("ignoring %s normalization: InceptionV3 takes images in [0, 1]", mode)
				}
				encoder := embeddings.NewInceptionV3(weightsDir)
				encoder.ImageSize = imageSize
				if err := encoder.Prepare(); err != nil {
					return nil, err
				}
				backend, err := c.Backend()
				if err != nil {
					return nil, err
				}
				defer backend.Finalize()
				klog.Infof("extracting embeddings of %s (%s images) with %s", images.Name(),
					humanize.Comma(int64(images.Len())), backend.Name())
				source := loader.New(images, c.BatchSize)
				return embeddings.New(backend, nil, source, encoder)
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Embeddings"))
			table := newTable(nil, lipgloss.Right, lipgloss.Left)
			table.AddRow(false, "file", output)
			table.AddRow(false, "# samples", humanize.Comma(int64(ds.Len())))
			table.AddRow(false, "feature dim", humanize.Comma(int64(ds.FeatureDim())))
			table.AddRow(false, "label dim", humanize.Comma(int64(ds.LabelDim())))
			table.AddRow(false, "size", humanize.Bytes(uint64(4*ds.Len()*(ds.FeatureDim()+ds.LabelDim()))))
			fmt.Fprintln(out, table.Render())
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&output, "output", "", "File where the embeddings are cached. "+
		"Defaults to <data_root>/embeddings/<dataset>_<split>_<mode>.bin.")
	flags.StringVar(&weightsDir, "weights", "", "Directory of the InceptionV3 weights. Defaults to <data_root>/inceptionv3.")
	flags.StringVar(&mode, "mode", config.ModeTest, "Transform pipeline of the configuration to use: train or test.")
	flags.IntVar(&imageSize, "image_size", 299, "Size images are resized to before InceptionV3, between 75 and 299.")
	return cmd
}
