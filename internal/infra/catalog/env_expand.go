package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// unsetEnv is a variable referenced by the config without a value or fallback,
// with the config keys that reference it. Pool entries are keyed by id, as in
// pools[lab].maximumCount.
type unsetEnv struct {
	Name string
	Keys []string
}

type envExpander struct {
	lookup func(string) (string, bool)
	unset  map[string][]string
}

// expandConfigEnv substitutes $VAR, ${VAR} and ${VAR:-fallback} in every
// string value of the document. Substituted values stay strings; the viper
// decoder converts them to the target field type.
func expandConfigEnv(raw []byte) ([]byte, []unsetEnv, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}

	x := &envExpander{lookup: os.LookupEnv, unset: make(map[string][]string)}
	x.walk(&root, "")

	out, err := yaml.Marshal(&root)
	if err != nil {
		return nil, nil, fmt.Errorf("encode expanded config: %w", err)
	}
	return out, x.report(), nil
}

func (x *envExpander) walk(node *yaml.Node, key string) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			x.walk(child, key)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			x.walk(node.Content[i+1], joinKey(key, node.Content[i].Value))
		}
	case yaml.SequenceNode:
		for i, child := range node.Content {
			x.walk(child, fmt.Sprintf("%s[%s]", key, itemLabel(child, i)))
		}
	case yaml.ScalarNode:
		x.expandScalar(node, key)
	}
	// Aliases are expanded where their anchor is defined.
}

func (x *envExpander) expandScalar(node *yaml.Node, key string) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}
	expanded := os.Expand(node.Value, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if val, ok := x.lookup(name); ok && (val != "" || !hasFallback) {
			return val
		}
		if hasFallback {
			return fallback
		}
		x.unset[name] = append(x.unset[name], key)
		return ""
	})
	node.Tag = "!!str"
	node.Value = expanded
}

func (x *envExpander) report() []unsetEnv {
	if len(x.unset) == 0 {
		return nil
	}
	out := make([]unsetEnv, 0, len(x.unset))
	for name, keys := range x.unset {
		sort.Strings(keys)
		out = append(out, unsetEnv{Name: name, Keys: keys})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// itemLabel names a sequence entry by its id field when it has a literal one,
// otherwise by position.
func itemLabel(node *yaml.Node, index int) string {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value != "id" {
				continue
			}
			id := strings.TrimSpace(node.Content[i+1].Value)
			if id != "" && !strings.Contains(id, "$") {
				return id
			}
		}
	}
	return fmt.Sprint(index)
}

func joinKey(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
