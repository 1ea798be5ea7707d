// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/diffae/pkg/embeddings"
	"github.com/gomlx/diffae/pkg/embeddings/pgstore"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// databaseURL returns the connection string: the flag if given, otherwise built from the
// POSTGRES_* environment variables, otherwise a local default.
func databaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return "postgres://localhost:5432/diffae"
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD"),
		host, port, os.Getenv("POSTGRES_DB"))
}

func newExportCmd() *cobra.Command {
	var dbURL, name string
	cmd := &cobra.Command{
		Use:   "export <embeddings file>",
		Short: "Exports embeddings extracted with \"embed\" to PostgreSQL with pgvector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := embeddings.Load(args[0])
			if err != nil {
				return err
			}
			if name == "" {
				name = ds.Name()
			}
			if strings.TrimSpace(name) == "" {
				return errors.New("embeddings have no dataset name, use --name")
			}
			store, err := pgstore.Connect(cmd.Context(), databaseURL(dbURL))
			if err != nil {
				return err
			}
			// The command context may be cancelled already, and the connection still needs closing.
			defer store.Close(context.Background())
			if err := store.Export(cmd.Context(), name, ds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s embeddings of %q\n", humanize.Comma(int64(ds.Len())), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "db", "", "PostgreSQL connection string. "+
		"Defaults to the POSTGRES_* environment variables, or postgres://localhost:5432/diffae.")
	cmd.Flags().StringVar(&name, "name", "", "Name of the dataset in the database. Defaults to the name stored in the embeddings.")
	return cmd
}
