package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/weibo-seed/internal/dataset"
	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
)

func newProfilesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Print the agents a dataset would produce, without contacting an engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runProfiles(cmd)
		},
	}
	cmd.Flags().String("dataset", "", "Dataset path or URL (default $SEED_DATASET)")
	cmd.Flags().String("alias-file", "", "YAML file extending the alias table")
	cmd.Flags().String("format", "yaml", "Output format: yaml or json")
	return cmd
}

func (a *app) runProfiles(cmd *cobra.Command) error {
	ctx := cmd.Context()
	path := a.cfg.Seed.DatasetPath
	if cmd.Flags().Changed("dataset") {
		path, _ = cmd.Flags().GetString("dataset")
	}
	if path == "" {
		return fmt.Errorf("dataset path is required (--dataset or SEED_DATASET)")
	}
	aliasFile := a.cfg.Seed.AliasFile
	if cmd.Flags().Changed("alias-file") {
		aliasFile, _ = cmd.Flags().GetString("alias-file")
	}

	format, _ := cmd.Flags().GetString("format")
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		format = "json"
	}
	if format != "yaml" && format != "json" {
		return fmt.Errorf("invalid format %q", format)
	}

	resolver, err := loadResolver(aliasFile)
	if err != nil {
		return err
	}
	ds, err := dataset.NewLoader(nil, a.logger).Load(ctx, path)
	if err != nil {
		return err
	}
	b, err := bootstrap.New(nil, bootstrap.WithResolver(resolver), bootstrap.WithLogger(a.logger))
	if err != nil {
		return err
	}
	g, err := b.BuildGraph(ctx, ds)
	if err != nil {
		return err
	}

	agents := g.Agents()
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), agents)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(agents); err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	return enc.Close()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
