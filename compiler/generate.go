// Package compiler runs stackgen generations: it resolves a selection,
// composes the fragment catalog, synchronizes the Contract Set, verifies the
// merged plan and materializes it all-or-nothing.
//
//	g, err := compiler.New(
//		compiler.WithTarget("./acme"),
//		compiler.WithProject("acme"),
//		compiler.WithFeatures(compiler.FeatureManifest),
//	)
//	if err != nil {
//		return err
//	}
//	res, err := g.Generate(ctx, schema.Selection{"backend": "echo", "auth": "enabled"})
package compiler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/syssam/stackgen/compat"
	"github.com/syssam/stackgen/compiler/gen"
	"github.com/syssam/stackgen/compiler/load"
	"github.com/syssam/stackgen/compiler/resolve"
	"github.com/syssam/stackgen/compiler/verify"
	"github.com/syssam/stackgen/contract"
	"github.com/syssam/stackgen/contract/goserver"
	"github.com/syssam/stackgen/contract/graphql"
	"github.com/syssam/stackgen/contract/tsclient"
	"github.com/syssam/stackgen/schema"
)

// Result is the outcome of one generation run.
type Result struct {
	// Config is the resolved Project Configuration.
	Config *resolve.Config
	// Plan is the merged File Plan.
	Plan *gen.Plan
	// Contracts is the synchronized Contract Set, nil when the contracts
	// feature is off.
	Contracts *contract.Set
	// Unchanged reports that the target already held this plan and nothing
	// was written.
	Unchanged bool
}

// Generator runs generations with a fixed configuration. It is safe for
// concurrent use.
type Generator struct {
	config   *Config
	logger   *slog.Logger
	resolver *resolve.Resolver
	catalog  *gen.Catalog
	composer *gen.Composer
	pipeline *contract.Pipeline
	verifier *verify.Verifier
	fs       billy.Filesystem
	dest     string
}

// New returns a generator configured by opts.
func New(opts ...Option) (*Generator, error) {
	c, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return NewGenerator(c)
}

// NewGenerator returns a generator for c. The fragment catalogs are loaded
// and checked against the option schema once, here.
func NewGenerator(c *Config) (*Generator, error) {
	g := &Generator{config: c, logger: c.logger()}
	matrix := c.Matrix
	if matrix == nil {
		matrix = compat.BuiltinMatrix()
	}
	g.resolver = resolve.New(matrix, resolve.WithLogger(g.logger))

	catalog, err := g.loadCatalog(matrix.Snapshot())
	if err != nil {
		return nil, err
	}
	g.catalog = catalog

	formatter, err := gen.FormatterFor(c.Formatter, c.module())
	if err != nil {
		return nil, NewConfigError("Formatter", c.Formatter, err.Error())
	}
	g.composer = gen.NewComposer(
		gen.WithVars(c.vars()),
		gen.WithFormatter(formatter),
		gen.WithComposeLogger(g.logger),
	)

	if c.FeatureEnabled(FeatureContracts) {
		renderers := []contract.Renderer{goserver.New(), tsclient.New()}
		if c.FeatureEnabled(FeatureGraphQLSDL) {
			renderers = append(renderers, graphql.New(c.module()))
		}
		g.pipeline = &contract.Pipeline{
			Catalog:   catalog,
			Renderers: renderers,
			Composer:  g.composer,
			Logger:    g.logger,
		}
	}
	if c.FeatureEnabled(FeatureVerify) {
		g.verifier = verify.New(verify.WithWorkers(c.Workers), verify.WithLogger(g.logger))
	}

	if c.Target != "" {
		g.fs, g.dest = c.Filesystem, c.Target
		if g.fs == nil {
			abs, err := filepath.Abs(c.Target)
			if err != nil {
				return nil, NewConfigError("Target", c.Target, err.Error())
			}
			g.fs, g.dest = osfs.New(filepath.Dir(abs)), filepath.Base(abs)
		}
	}
	return g, nil
}

func (g *Generator) loadCatalog(snap *schema.Snapshot) (*gen.Catalog, error) {
	catalog := g.config.Catalog
	if catalog == nil {
		builtin, err := load.Builtin()
		if err != nil {
			return nil, NewGenerationError(PhaseCatalog, "", "load builtin catalog", err)
		}
		catalog = builtin
	}
	for _, dir := range g.config.CatalogDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, NewGenerationError(PhaseCatalog, dir, "catalog directory not found", err)
		}
		extra, err := load.Dir(dir)
		if err != nil {
			return nil, NewGenerationError(PhaseCatalog, dir, "load catalog", err)
		}
		if catalog, err = catalog.Merge(extra); err != nil {
			return nil, NewGenerationError(PhaseCatalog, dir, "merge catalog", err)
		}
	}
	if err := catalog.Validate(snap); err != nil {
		return nil, NewGenerationError(PhaseCatalog, "", "validate catalog", err)
	}
	g.logger.Debug("catalog loaded", slog.Int("fragments", catalog.Len()), slog.Int("dirs", len(g.config.CatalogDirs)))
	return catalog, nil
}

// Config returns the generation settings.
func (g *Generator) Config() *Config { return g.config }

// Catalog returns the merged fragment catalog.
func (g *Generator) Catalog() *gen.Catalog { return g.catalog }

// Resolver returns the configuration resolver.
func (g *Generator) Resolver() *resolve.Resolver { return g.resolver }

// Resolve resolves sel into a Project Configuration.
func (g *Generator) Resolve(sel schema.Selection) (*resolve.Config, error) {
	cfg, err := g.resolver.Resolve(sel)
	if err != nil {
		return nil, NewGenerationError(PhaseResolve, "", "", err)
	}
	return cfg, nil
}

// Build resolves sel and returns the merged, verified plan without writing
// anything.
func (g *Generator) Build(ctx context.Context, sel schema.Selection) (*Result, error) {
	cfg, err := g.Resolve(sel)
	if err != nil {
		return nil, err
	}
	return g.BuildConfig(ctx, cfg)
}

// BuildConfig composes, synchronizes and verifies the plan of cfg.
func (g *Generator) BuildConfig(ctx context.Context, cfg *resolve.Config) (*Result, error) {
	plan, err := g.composer.Compose(cfg, g.catalog)
	if err != nil {
		return nil, NewGenerationError(PhaseCompose, "", "", err)
	}
	res := &Result{Config: cfg, Plan: plan}
	if g.pipeline != nil {
		synced, err := g.pipeline.Synchronize(cfg)
		if err != nil {
			return nil, NewGenerationError(PhaseContracts, "", "", err)
		}
		if err := plan.Add(synced.Entries()...); err != nil {
			return nil, NewGenerationError(PhaseContracts, "", "merge renderings", err)
		}
		res.Contracts = synced.Set
	}
	if err := g.mergeProjectConfig(plan); err != nil {
		return nil, NewGenerationError(PhaseCompose, ProjectConfigPath, "merge project config", err)
	}
	if g.config.FeatureEnabled(FeatureManifest) {
		data, err := NewManifest(g.config, cfg, plan).Encode()
		if err != nil {
			return nil, NewGenerationError(PhaseManifest, ManifestPath, "", err)
		}
		if err := plan.Add(gen.Entry{Path: ManifestPath, Content: data, Fragment: "manifest"}); err != nil {
			return nil, NewGenerationError(PhaseManifest, ManifestPath, "", err)
		}
	}
	if g.verifier != nil {
		if err := g.verifier.Verify(ctx, plan); err != nil {
			return nil, NewGenerationError(PhaseVerify, "", "generated files do not parse", err)
		}
	}
	g.logger.Debug("plan built",
		slog.String("config", cfg.String()),
		slog.Int("files", plan.Len()),
	)
	return res, nil
}

// Generate builds the plan of sel and materializes it at the target.
func (g *Generator) Generate(ctx context.Context, sel schema.Selection) (*Result, error) {
	if g.fs == nil {
		return nil, NewConfigError("Target", nil, "target directory is required to generate")
	}
	start := time.Now()
	res, err := g.Build(ctx, sel)
	if err != nil {
		return nil, err
	}
	prev := g.previous()
	if prev != nil {
		if cur, ok := res.Plan.Lookup(ManifestPath); ok {
			if m, err := DecodeManifest(cur.Content); err == nil && m.Digest == prev.Digest {
				res.Unchanged = true
				g.logger.Info("project unchanged", slog.String("target", g.config.Target))
				return res, nil
			}
		}
	}
	w := gen.NewWriter(g.fs).
		WithWorkers(g.config.Workers).
		WithOverwrite(g.config.Overwrite).
		WithLogger(g.logger)
	if prev != nil {
		w.WithPrevious(append(prev.Paths(), ManifestPath)...)
	}
	if err := w.Write(ctx, res.Plan, g.dest); err != nil {
		return nil, NewGenerationError(PhaseWrite, g.config.Target, "", err)
	}
	g.logger.Info("project generated",
		slog.String("target", g.config.Target),
		slog.String("config", res.Config.String()),
		slog.Int("files", res.Plan.Len()),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

// previous returns the manifest of the last generation at the target, or
// nil when there is none.
func (g *Generator) previous() *Manifest {
	data, err := util.ReadFile(g.fs, g.fs.Join(g.dest, filepath.FromSlash(ManifestPath)))
	if err != nil {
		return nil
	}
	m, err := DecodeManifest(data)
	if err != nil {
		g.logger.Warn("ignoring unreadable manifest", slog.Any("error", err))
		return nil
	}
	return m
}

// Generate runs a single generation of sel.
func Generate(ctx context.Context, sel schema.Selection, opts ...Option) (*Result, error) {
	g, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, sel)
}
