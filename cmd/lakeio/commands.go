/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/suparena/lakeio"
	"github.com/suparena/lakeio/config"
	"github.com/suparena/lakeio/storage"
	"github.com/suparena/lakeio/storagemodels"
	"gopkg.in/yaml.v3"
)

type cli struct {
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "lakeio",
		Short:         "Storage access for table-format data lakes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "YAML configuration file (default: environment)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log retries and consistency waits")

	root.AddCommand(
		c.versionCmd(),
		c.lsCmd(),
		c.statCmd(),
		c.rmCmd(),
		c.mvCmd(),
		c.catCmd(),
		c.putCmd(),
	)
	return root
}

// factory builds an IOFactory from the configuration source selected by flags.
func (c *cli) factory(cmd *cobra.Command) (*lakeio.IOFactory, error) {
	var (
		conf storagemodels.StorageConfig
		err  error
	)
	if c.configFile != "" {
		conf, err = config.FromYAML(c.configFile)
	} else {
		conf, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	level := slog.LevelError
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return lakeio.NewIOFactory(conf, lakeio.WithLogger(logger))
}

// handle returns a storage handle rooted at the parent of p and the base name of p.
func (c *cli) handle(cmd *cobra.Command, p string) (*storage.Storage, string, error) {
	f, err := c.factory(cmd)
	if err != nil {
		return nil, "", err
	}
	full := absPath(p)
	dir, name := path.Split(strings.TrimSuffix(full, "/"))
	st, err := f.StorageFromConfig(cmd.Context(), strings.TrimSuffix(dir, "/"))
	if err != nil {
		return nil, "", err
	}
	return st, name, nil
}

// absPath makes plain local paths absolute; URIs are returned unchanged.
func absPath(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(abs)
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := lakeio.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lakeio version %s\n", info.Version)
			fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
		},
	}
}

func (c *cli) lsCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls <dir>",
		Short: "List a directory",
		Example: `  lakeio ls s3://lake/tables/trips
  lakeio ls -r ./warehouse/trips`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := c.factory(cmd)
			if err != nil {
				return err
			}
			st, err := f.StorageFromConfig(cmd.Context(), absPath(args[0]))
			if err != nil {
				return err
			}
			var entries []storagemodels.FileStatus
			if recursive {
				entries, err = st.ListFiles(cmd.Context(), "")
			} else {
				entries, err = st.List(cmd.Context(), "")
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range entries {
				kind, modified := "-", ""
				if e.IsDir {
					kind = "d"
				}
				if !e.ModifiedAt.IsZero() {
					modified = e.ModifiedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", kind, e.Size, modified, e.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "List every file below the directory")
	return cmd
}

func (c *cli) statCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Describe a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, name, err := c.handle(cmd, args[0])
			if err != nil {
				return err
			}
			status, err := st.Stat(cmd.Context(), name)
			if err != nil {
				return err
			}
			return printYAML(cmd, map[string]any{
				"path":       status.Path,
				"size":       status.Size,
				"dir":        status.IsDir,
				"modifiedAt": status.ModifiedAt,
			})
		},
	}
}

func (c *cli) rmCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or empty directory and wait until it is gone",
		Example: `  lakeio rm s3://lake/tables/trips/.meta/00001.commit
  lakeio rm -r ./warehouse/trips/p=1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, name, err := c.handle(cmd, args[0])
			if err != nil {
				return err
			}
			if recursive {
				return removeAll(cmd.Context(), st, name)
			}
			return st.Delete(cmd.Context(), name)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Delete a directory and everything below it")
	return cmd
}

// removeAll deletes p and, if it is a directory, its entries first.
func removeAll(ctx context.Context, st *storage.Storage, p string) error {
	status, err := st.Stat(ctx, p)
	if err != nil {
		return err
	}
	if status.IsDir {
		entries, err := st.List(ctx, p)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := removeAll(ctx, st, e.Path); err != nil {
				return err
			}
		}
	}
	return st.Delete(ctx, p)
}

func (c *cli) mvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Rename a file and wait until the rename is visible",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, name, err := c.handle(cmd, args[0])
			if err != nil {
				return err
			}
			return st.Rename(cmd.Context(), name, absPath(args[1]))
		},
	}
}

func (c *cli) catCmd() *cobra.Command {
	var recordType string
	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Print the records of a file as YAML",
		Long: `Print the records of a file as a YAML stream.

The record type is taken from --type, or from the file extension when the
flag is empty: ".avro" files are AVRO, everything else uses the external codec.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRecordType(recordType, args[0])
			if err != nil {
				return err
			}
			f, err := c.factory(cmd)
			if err != nil {
				return err
			}
			rf, err := f.ReaderFactory(rt)
			if err != nil {
				return err
			}
			st, name, err := c.handle(cmd, args[0])
			if err != nil {
				return err
			}
			r, err := rf.NewReader(cmd.Context(), st, name)
			if err != nil {
				return err
			}
			defer r.Close()

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			for {
				rec, err := r.Read()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "Record type: AVRO or EXTERNAL")
	return cmd
}

func resolveRecordType(flag, p string) (storagemodels.RecordType, error) {
	if flag != "" {
		return storagemodels.ParseRecordType(flag)
	}
	if strings.HasSuffix(p, ".avro") {
		return storagemodels.RecordTypeAvro, nil
	}
	return storagemodels.RecordTypeExternal, nil
}

func (c *cli) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> <path>",
		Short: "Copy a local file in as an immutable file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			st, name, err := c.handle(cmd, args[1])
			if err != nil {
				return err
			}
			return st.CreateImmutable(cmd.Context(), name, data)
		},
	}
}

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	defer enc.Close()
	return enc.Encode(v)
}
