package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidChannel is returned for channel references not in node/tag form.
var ErrInvalidChannel = errors.New("invalid channel reference")

// Graph describes the nodes of an application and the edges wiring their ports.
// Graph files are JSON; yaml.v3 reads them as well as YAML.
type Graph struct {
	Nodes []GraphNode `yaml:"nodes" json:"nodes"`
	Edges []GraphEdge `yaml:"edges" json:"edges"`
}

// GraphNode names a node. Component is the codelet type to instantiate when the
// node is not registered explicitly by the application.
type GraphNode struct {
	Name      string `yaml:"name" json:"name"`
	Component string `yaml:"component,omitempty" json:"component,omitempty"`
}

// GraphEdge connects a tx channel to an rx channel, both as node/tag.
type GraphEdge struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// LoadGraph reads and validates a graph file.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading graph file: %w", err)
	}

	var graph Graph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("error parsing graph file: %w", err)
	}

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph file '%s': %w", path, err)
	}

	return &graph, nil
}

// Validate checks node names are unique and edges reference known nodes.
func (g *Graph) Validate() error {
	names := make(map[string]bool, len(g.Nodes))
	for i, node := range g.Nodes {
		if node.Name == "" {
			return fmt.Errorf("node %d has no name", i)
		}
		if strings.Contains(node.Name, "/") {
			return fmt.Errorf("node name '%s' must not contain '/'", node.Name)
		}
		if names[node.Name] {
			return fmt.Errorf("duplicate node '%s'", node.Name)
		}
		names[node.Name] = true
	}

	for _, edge := range g.Edges {
		for _, ref := range []string{edge.Source, edge.Target} {
			node, _, err := ParseChannel(ref)
			if err != nil {
				return err
			}
			if !names[node] {
				return fmt.Errorf("edge %s -> %s references unknown node '%s'", edge.Source, edge.Target, node)
			}
		}
	}

	return nil
}

// GetNode returns the node with the given name.
func (g *Graph) GetNode(name string) (GraphNode, bool) {
	for _, node := range g.Nodes {
		if node.Name == name {
			return node, true
		}
	}
	return GraphNode{}, false
}

// ParseChannel splits a node/tag reference.
func ParseChannel(ref string) (node, tag string, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: '%s' (expected node/tag)", ErrInvalidChannel, ref)
	}
	return parts[0], parts[1], nil
}

// AppConfig maps node names to their parameter documents.
type AppConfig map[string]yaml.Node

// LoadAppConfig reads a node parameter file (JSON or YAML).
func LoadAppConfig(path string) (AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := AppConfig{}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Params returns the parameter document of a node as YAML.
func (c AppConfig) Params(node string) ([]byte, bool, error) {
	doc, exists := c[node]
	if !exists {
		return nil, false, nil
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, true, fmt.Errorf("error encoding params of node '%s': %w", node, err)
	}
	return data, true, nil
}

// SetParams replaces the parameter document of a node with the encoding of v.
func (c AppConfig) SetParams(node string, v interface{}) error {
	var doc yaml.Node
	if err := doc.Encode(v); err != nil {
		return fmt.Errorf("error encoding params of node '%s': %w", node, err)
	}
	c[node] = doc
	return nil
}

// Clone returns a copy whose node entries can be replaced independently.
func (c AppConfig) Clone() AppConfig {
	clone := make(AppConfig, len(c))
	for node, doc := range c {
		clone[node] = doc
	}
	return clone
}

// Nodes returns the node names with parameters, sorted.
func (c AppConfig) Nodes() []string {
	nodes := make([]string, 0, len(c))
	for node := range c {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Marshal encodes the config as YAML, or as indented JSON when asJSON is set.
func (c AppConfig) Marshal(asJSON bool) ([]byte, error) {
	if !asJSON {
		return yaml.Marshal(map[string]yaml.Node(c))
	}

	generic := make(map[string]interface{}, len(c))
	for node, doc := range c {
		var v interface{}
		if err := doc.Decode(&v); err != nil {
			return nil, fmt.Errorf("error decoding params of node '%s': %w", node, err)
		}
		generic[node] = v
	}
	return json.MarshalIndent(generic, "", "  ")
}

// Save writes the config to path, as JSON when the file extension is .json.
func (c AppConfig) Save(path string) error {
	data, err := c.Marshal(strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file '%s': %w", path, err)
	}
	return nil
}
