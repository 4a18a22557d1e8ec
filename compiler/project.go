package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/syssam/stackgen/compiler/gen"
)

// ProjectConfigPath is the project-relative path of the project config
// written by generation.
const ProjectConfigPath = "stackgen.yaml"

// mergeProjectConfig keeps the sections of a project config already at the
// target that generation does not produce, such as generate and bridge
// settings. Keys the plan produces take the generated values.
func (g *Generator) mergeProjectConfig(plan *gen.Plan) error {
	if g.fs == nil {
		return nil
	}
	e, ok := plan.Lookup(ProjectConfigPath)
	if !ok {
		return nil
	}
	data, err := util.ReadFile(g.fs, g.fs.Join(g.dest, ProjectConfigPath))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	merged, err := mergeYAML(data, e.Content)
	if err != nil || merged == nil {
		return err
	}
	plan.Replace(ProjectConfigPath, merged)
	return nil
}

// mergeYAML overlays the top-level keys of generated onto existing. It
// returns nil when existing holds no key of its own.
func mergeYAML(existing, generated []byte) ([]byte, error) {
	var cur, next yaml.Node
	if err := yaml.Unmarshal(existing, &cur); err != nil {
		return nil, fmt.Errorf("parse existing %s: %w", ProjectConfigPath, err)
	}
	if err := yaml.Unmarshal(generated, &next); err != nil {
		return nil, fmt.Errorf("parse generated %s: %w", ProjectConfigPath, err)
	}
	curMap, nextMap := mapping(&cur), mapping(&next)
	if curMap == nil || nextMap == nil {
		return nil, nil
	}
	own := false
	for i := 0; i < len(curMap.Content); i += 2 {
		if keyIndex(nextMap, curMap.Content[i].Value) < 0 {
			own = true
			break
		}
	}
	if !own {
		return nil, nil
	}
	for i := 0; i < len(nextMap.Content); i += 2 {
		k, v := nextMap.Content[i], nextMap.Content[i+1]
		if j := keyIndex(curMap, k.Value); j >= 0 {
			curMap.Content[j+1] = v
		} else {
			curMap.Content = append(curMap.Content, k, v)
		}
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&cur); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ProjectConfigPath, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ProjectConfigPath, err)
	}
	return buf.Bytes(), nil
}

func mapping(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	return n
}

func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}
