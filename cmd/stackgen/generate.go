package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/syssam/stackgen/compiler"
	"github.com/syssam/stackgen/config"
	"github.com/syssam/stackgen/schema"
)

// generateFlags override the loaded configuration.
type generateFlags struct {
	sets      []string
	out       string
	project   string
	module    string
	formatter string
	catalogs  []string
	features  []string
	without   []string
	overwrite bool
	dryRun    bool
	watch     bool
}

func (f *generateFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringArrayVar(&f.sets, "set", nil, "Select an option value (option=value, repeatable)")
	fl.StringVarP(&f.out, "out", "o", "", "Output directory")
	fl.StringVar(&f.project, "project", "", "Project name (default: base name of the output directory)")
	fl.StringVar(&f.module, "module", "", "Go module path of the server (default: <project>/server)")
	fl.StringVar(&f.formatter, "formatter", "", "Go formatter (goimports, gofumpt, none)")
	fl.StringSliceVar(&f.catalogs, "catalog", nil, "Additional fragment catalog directory (repeatable)")
	fl.StringSliceVar(&f.features, "feature", nil, "Enable a generator feature (contracts, graphql-sdl, verify, manifest)")
	fl.StringSliceVar(&f.without, "without", nil, "Disable a generator feature")
	fl.BoolVar(&f.overwrite, "overwrite", false, "Write into a non-empty output directory, replacing generated files only")
}

// apply overlays the flags onto cfg.
func (f *generateFlags) apply(cfg *config.Config) error {
	cfg.Merge(&config.Config{
		Project: f.project,
		Module:  f.module,
		Generate: config.GenerateConfig{
			Output:    f.out,
			Formatter: f.formatter,
			Features:  f.features,
			Disabled:  f.without,
			Overwrite: f.overwrite,
		},
	})
	cfg.Generate.Catalogs = append(cfg.Generate.Catalogs, f.catalogs...)
	if cfg.Project == "" {
		abs, err := filepath.Abs(cfg.Generate.Output)
		if err != nil {
			return err
		}
		cfg.Project = filepath.Base(abs)
	}
	return cfg.Validate()
}

func (a *app) generateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a project",
		Long: `Generate resolves the selection, composes the matching fragments,
renders the contracts for every side and writes the project.

With --watch, the project config and catalog directories are watched and
the project is regenerated on every change. Watch mode records a manifest
and overwrites the output, skipping runs that would write the same files.`,
		Example: `  stackgen generate -o acme --set backend=gin --set api=graphql
  stackgen generate --watch --catalog ./fragments`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.watch {
				return a.watch(cmd, &f)
			}
			g, sel, err := a.generator(&f)
			if err != nil {
				return err
			}
			if f.dryRun {
				res, err := g.Build(cmd.Context(), sel)
				if err != nil {
					return err
				}
				for _, p := range res.Plan.Paths() {
					fmt.Fprintln(cmd.OutOrStdout(), p)
				}
				return nil
			}
			res, err := g.Generate(cmd.Context(), sel)
			if err != nil {
				return err
			}
			report(cmd, g, res)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print the files that would be generated without writing them")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Regenerate when the project config or a catalog changes")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "watch")
	return cmd
}

// generator loads the configuration and builds a generator for it.
func (a *app) generator(f *generateFlags, extra ...compiler.Option) (*compiler.Generator, schema.Selection, error) {
	cfg, err := a.load()
	if err != nil {
		return nil, nil, err
	}
	if err := f.apply(cfg); err != nil {
		return nil, nil, err
	}
	sel, err := selection(cfg, f.sets)
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, compiler.WithLogger(a.logger))
	g, err := compiler.New(append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return g, sel, nil
}

func (a *app) watch(cmd *cobra.Command, f *generateFlags) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	if err := f.apply(cfg); err != nil {
		return err
	}
	paths := cfg.Generate.Catalogs
	if cfg.Path != "" {
		paths = append(paths, cfg.Path)
	}
	if len(paths) == 0 {
		return errors.New("nothing to watch: no project config and no catalog directories")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error {
		g, sel, err := a.generator(f, compiler.WithFeatures(compiler.FeatureManifest), compiler.WithOverwrite(true))
		if err != nil {
			return err
		}
		res, err := g.Generate(ctx, sel)
		if err != nil {
			return err
		}
		report(cmd, g, res)
		return nil
	}
	a.logger.Info("watching for changes", "paths", paths)
	return compiler.Watch(ctx, paths, run, compiler.WithWatchLogger(a.logger))
}

func report(cmd *cobra.Command, g *compiler.Generator, res *compiler.Result) {
	out := cmd.OutOrStdout()
	if res.Unchanged {
		fmt.Fprintf(out, "%s is up to date\n", g.Config().Target)
		return
	}
	fmt.Fprintf(out, "generated %d files into %s\n", res.Plan.Len(), g.Config().Target)
	fmt.Fprintf(out, "  %s\n", res.Config)
	if res.Contracts != nil {
		fmt.Fprintf(out, "  %d contracts\n", res.Contracts.Len())
	}
}
