package compiler

import (
	"fmt"
	"slices"
	"strings"
)

var (
	// FeatureContracts synchronizes the Contract Set into server and client
	// renderings.
	FeatureContracts = Feature{
		Name:        "contracts",
		Stage:       Stable,
		Default:     true,
		Description: "Derives the Contract Set from contract fragments and renders it for the server and the client",
	}

	// FeatureGraphQLSDL adds the GraphQL rendering of the Contract Set and the
	// gqlgen.yml binding it, for configurations with api=graphql.
	FeatureGraphQLSDL = Feature{
		Name:        "graphql-sdl",
		Stage:       Beta,
		Default:     true,
		Description: "Renders the Contract Set as GraphQL SDL together with a gqlgen.yml binding it to the Go contract package",
		requires:    []string{"contracts"},
	}

	// FeatureVerify parses every generated source file before anything is
	// written, and fails the run on syntax errors.
	FeatureVerify = Feature{
		Name:        "verify",
		Stage:       Beta,
		Default:     true,
		Description: "Checks the syntax of generated Go, TypeScript, JavaScript, TOML, GraphQL, JSON and YAML files",
	}

	// FeatureManifest records the configuration and a digest of every file in
	// .stackgen/manifest.yaml.
	FeatureManifest = Feature{
		Name:        "manifest",
		Stage:       Alpha,
		Default:     false,
		Description: "Writes .stackgen/manifest.yaml with the resolved configuration and per-file digests",
	}

	// AllFeatures holds a list of all feature-flags.
	AllFeatures = []Feature{
		FeatureContracts,
		FeatureGraphQLSDL,
		FeatureVerify,
		FeatureManifest,
	}
)

// FeatureStage describes the stage of a generation feature.
type FeatureStage int

const (
	_ FeatureStage = iota

	// Experimental features are in development.
	Experimental

	// Alpha features are complete, but their output may still change.
	Alpha

	// Beta features are documented and their output is not expected to change.
	Beta

	// Stable features have been enabled by default for a while.
	Stable
)

// String returns the lower-case stage name.
func (s FeatureStage) String() string {
	switch s {
	case Experimental:
		return "experimental"
	case Alpha:
		return "alpha"
	case Beta:
		return "beta"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("FeatureStage(%d)", int(s))
	}
}

// A Feature of the generation pipeline.
type Feature struct {
	// Name of the feature.
	Name string

	// Stage of the feature.
	Stage FeatureStage

	// Default values indicates if this feature is enabled by default.
	Default bool

	// A Description of this feature.
	Description string

	// requires lists features that must be enabled for this one to apply.
	requires []string
}

// FeatureByName returns the feature called name.
func FeatureByName(name string) (Feature, bool) {
	i := slices.IndexFunc(AllFeatures, func(f Feature) bool { return f.Name == name })
	if i < 0 {
		return Feature{}, false
	}
	return AllFeatures[i], true
}

// ParseFeatures resolves feature names. Unknown names are a ConfigError
// listing the known ones.
func ParseFeatures(names ...string) ([]Feature, error) {
	features := make([]Feature, 0, len(names))
	for _, name := range names {
		f, ok := FeatureByName(strings.TrimSpace(name))
		if !ok {
			known := make([]string, len(AllFeatures))
			for i, f := range AllFeatures {
				known[i] = f.Name
			}
			return nil, NewConfigError("Features", name, "unknown feature; use one of "+strings.Join(known, ", "))
		}
		features = append(features, f)
	}
	return features, nil
}
