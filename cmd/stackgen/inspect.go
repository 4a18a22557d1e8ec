package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syssam/stackgen/compiler"
)

func (a *app) resolveCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a selection into a full configuration",
		Long: `Resolve completes the selection with defaults, or with the first legal
value where a default is ruled out, and prints the resulting configuration.
Nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, sel, err := a.generator(&f)
			if err != nil {
				return err
			}
			cfg, err := g.Resolve(sel)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range cfg.Options() {
				mark := ""
				if _, ok := sel[name]; !ok {
					mark = " (resolved)"
				}
				fmt.Fprintf(out, "%s=%s%s\n", name, cfg.Get(name), mark)
			}
			fmt.Fprintf(out, "hash: %s\n", cfg.Hash())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) optionsCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the selectable options",
		Long: `Options lists every option with its values and default. Options not
fixed by --set also show the values that keep the selection satisfiable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, sel, err := a.generator(&f)
			if err != nil {
				return err
			}
			m := g.Resolver().Matrix()
			legal := m.Legal(sel)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OPTION\tSELECTED\tLEGAL\tDEFAULT\tDESCRIPTION")
			for _, o := range m.Snapshot().Options() {
				selected, values := sel[o.Name], strings.Join(legal[o.Name], ",")
				if selected != "" {
					values = "-"
				} else {
					selected = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Name, selected, values, o.Default, o.Description)
			}
			return w.Flush()
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) contractsCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List the contracts of a selection",
		Long: `Contracts composes the selection and prints the contracts its fragments
declare, with the files they are rendered to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, sel, err := a.generator(&f, compiler.WithoutFeatures(compiler.FeatureVerify))
			if err != nil {
				return err
			}
			res, err := g.Build(cmd.Context(), sel)
			if err != nil {
				return err
			}
			if res.Contracts == nil {
				return fmt.Errorf("contract synchronization is disabled")
			}
			out := cmd.OutOrStdout()
			for _, c := range res.Contracts.Contracts() {
				fields := make([]string, len(c.Fields))
				for i, fd := range c.Fields {
					fields[i] = fd.String()
				}
				fmt.Fprintf(out, "%s {%s}  [%s]\n", c.Name, strings.Join(fields, ", "), c.Fragment)
			}
			for _, e := range res.Plan.Entries {
				if strings.HasPrefix(e.Fragment, "contract/") {
					fmt.Fprintf(out, "-> %s\n", e.Path)
				}
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
