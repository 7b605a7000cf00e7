// Command webcafctl inspects framework documents and generates references
// and spreadsheets without running the server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/co-cddo/webcaf/internal/export"
	"github.com/co-cddo/webcaf/internal/framework"
	"github.com/co-cddo/webcaf/internal/reference"
	"github.com/co-cddo/webcaf/internal/route"
)

const defaultFramework = "frameworks/cyber-assessment-framework-v3.2.yaml"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "webcafctl",
		Short:        "Operator tools for WebCAF frameworks and assessments",
		SilenceUsage: true,
	}
	root.AddCommand(routesCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(referenceCmd())
	root.AddCommand(templateCmd())
	return root
}

func loadFramework(path, scope string) (*framework.Framework, error) {
	s := framework.Scope(scope)
	if !s.Valid() {
		return nil, fmt.Errorf("unknown scope %q (want all, organisation or system)", scope)
	}
	fw, err := framework.Load(path)
	if err != nil {
		return nil, err
	}
	return fw.FilterByScope(s), nil
}

func routesCmd() *cobra.Command {
	var path, scope, exit string
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the page navigation sequence of a framework",
		RunE: func(cmd *cobra.Command, args []string) error {
			fw, err := loadFramework(path, scope)
			if err != nil {
				return err
			}
			r, err := route.Compile(fw, exit, route.CompileOptions{})
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"#", "Page", "Template", "Title", "Next"})
			for i, p := range r.Pages() {
				tw.AppendRow(table.Row{i + 1, p.ID, p.Template, p.Metadata.Title, p.SuccessTarget})
			}
			tw.AppendFooter(table.Row{"", "", "", "pages", r.Len()})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "framework", defaultFramework, "framework document")
	cmd.Flags().StringVar(&scope, "scope", string(framework.ScopeAll), "all, organisation or system")
	cmd.Flags().StringVar(&exit, "exit", "index", "success target of the last page")
	return cmd
}

func validateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a framework document and print its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			fw, err := framework.Load(path)
			if err != nil {
				return err
			}
			c := fw.Counts()

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Level", "Count"})
			tw.AppendRows([]table.Row{
				{"objectives", c.Objectives},
				{"principles", c.Principles},
				{"outcomes", c.Outcomes},
				{"indicators", c.Indicators},
			})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "framework", defaultFramework, "framework document")
	return cmd
}

func referenceCmd() *cobra.Command {
	var (
		length  int
		profile string
	)
	cmd := &cobra.Command{
		Use:   "reference KEY",
		Short: "Print the public reference for a numeric key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key %q: %w", args[0], err)
			}
			ref, err := reference.Generate(key,
				reference.WithLength(length),
				reference.WithProfile(reference.Profile(profile)),
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", reference.DefaultLength, "number of characters")
	cmd.Flags().StringVar(&profile, "profile", string(reference.ProfileDefault), "default, assessment, system or organisation")
	return cmd
}

func templateCmd() *cobra.Command {
	var path, out, scope string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the offline self-assessment workbook for a framework",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out required")
			}
			fw, err := loadFramework(path, scope)
			if err != nil {
				return err
			}
			buf, err := export.Template(fw)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, buf.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "framework", defaultFramework, "framework document")
	cmd.Flags().StringVar(&out, "out", "", "output .xlsx file")
	cmd.Flags().StringVar(&scope, "scope", string(framework.ScopeAll), "all, organisation or system")
	return cmd
}
