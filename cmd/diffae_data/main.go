// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// diffae_data prepares and inspects the face datasets of the diffusion autoencoder: it downloads
// and checks the files, prints statistics, extracts the embeddings and exports them to PostgreSQL.
//
// The dataset is selected by a YAML configuration file (see package config) and/or by flags:
//
//	diffae_data --dataset=celebahq --split=train download
//	diffae_data --config=experiment.yaml stats --plot=attributes.png
//	diffae_data --config=experiment.yaml --set="batch_size=32" embed --output=celebahq_train.bin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gomlx/diffae/pkg/config"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	configPath string
	dataRoot   string
	dataset    string
	split      string
	device     string
	settings   string
	noDownload bool
}

// newRootCmd creates the command tree. The loaded configuration is stored in *cfg before any
// subcommand runs.
func newRootCmd(cfg **config.Config) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "diffae_data",
		Short:         "Prepares and inspects the face datasets of the diffusion autoencoder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			*cfg = loaded
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file. Flags take precedence over it.")
	pf.StringVar(&flags.dataRoot, "data_root", config.DefaultDataRoot, "Root directory of the datasets.")
	pf.StringVar(&flags.dataset, "dataset", "", "Dataset name: celeba, celebahq or hdtf.")
	pf.StringVar(&flags.split, "split", "train", "Dataset split: train, valid, test or all.")
	pf.StringVar(&flags.device, "device", "", "GoMLX backend configuration, e.g. \"xla:cuda\". Empty for the default.")
	pf.StringVar(&flags.settings, "set", "", "Configuration overrides, as \"key1=value1;key2=value2\". "+
		"Keys: device, data_root, dataset, split, batch_size.")
	pf.BoolVar(&flags.noDownload, "no_download", false, "Don't download missing files.")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		newDownloadCmd(cfg),
		newCheckCmd(cfg),
		newStatsCmd(cfg),
		newEmbedCmd(cfg),
		newExportCmd(),
	)
	return root
}

// loadConfig reads the configuration file, if given, and applies the flags and settings.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		var err error
		cfg, err = config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
	}
	pf := cmd.Flags()
	ctx := cfg.Context()
	overrides := map[string]any{}
	if pf.Changed("data_root") || flags.configPath == "" {
		overrides[config.ParamDataRoot] = flags.dataRoot
	}
	if pf.Changed("dataset") {
		overrides[config.ParamDataset] = flags.dataset
	}
	if pf.Changed("split") || flags.configPath == "" {
		overrides[config.ParamSplit] = flags.split
	}
	if pf.Changed("device") {
		overrides[config.ParamDevice] = flags.device
	}
	ctx.SetParams(overrides)
	if _, err := commandline.ParseContextSettings(ctx, flags.settings); err != nil {
		return nil, err
	}
	if err := cfg.FromContext(ctx); err != nil {
		return nil, err
	}
	if flags.noDownload {
		cfg.Dataset.Download = false
	}
	klog.V(1).Infof("configuration: %s", commandline.SprintContextSettings(ctx))
	return cfg, nil
}

func main() {
	klog.InitFlags(nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg *config.Config
	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}
