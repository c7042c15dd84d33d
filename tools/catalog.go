package tools

import (
	"encoding/json"
	"fmt"
)

// Argument shapes for the built-in tools. Payloads are forwarded to the
// remote client verbatim; validation only guards the required fields so a
// malformed call fails fast instead of burning a round trip.

type fileTreeArgs struct {
	Path string `json:"path"`
}

type nodeArgs struct {
	NodeID string `json:"node_id"`
}

type setPropertyArgs struct {
	NodeID   string          `json:"node_id"`
	Property string          `json:"property"`
	Value    json.RawMessage `json:"value"`
}

type createNodeArgs struct {
	ParentID string `json:"parent_id"`
	NodeType string `json:"node_type"`
}

type runScriptArgs struct {
	Source    string `json:"source"`
	TimeoutMs int    `json:"timeout_ms"`
}

type exportAssetArgs struct {
	NodeID string  `json:"node_id"`
	Format string  `json:"format"`
	Scale  float64 `json:"scale"`
}

func decode(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("arguments are required")
	}
	return json.Unmarshal(args, v)
}

var exportFormats = map[string]bool{"png": true, "jpg": true, "svg": true, "pdf": true}

// BuiltinDefinitions returns the catalog of document operations the remote
// plugin understands.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			Name:        "get_file_tree",
			Description: "List the document tree below a path",
			Validate: func(args json.RawMessage) error {
				var a fileTreeArgs
				if err := decode(args, &a); err != nil {
					return err
				}
				if a.Path == "" {
					return fmt.Errorf("required parameter 'path' is missing")
				}
				return nil
			},
		},
		{
			Name:        "get_selection",
			Description: "Return the nodes currently selected in the editor",
		},
		{
			Name:        "get_node",
			Description: "Fetch a single node with its properties",
			Validate:    validateNodeID,
		},
		{
			Name:        "set_property",
			Description: "Set one property on a node",
			Validate: func(args json.RawMessage) error {
				var a setPropertyArgs
				if err := decode(args, &a); err != nil {
					return err
				}
				if a.NodeID == "" {
					return fmt.Errorf("required parameter 'node_id' is missing")
				}
				if a.Property == "" {
					return fmt.Errorf("required parameter 'property' is missing")
				}
				if len(a.Value) == 0 {
					return fmt.Errorf("required parameter 'value' is missing")
				}
				return nil
			},
		},
		{
			Name:        "create_node",
			Description: "Create a child node under a parent",
			Validate: func(args json.RawMessage) error {
				var a createNodeArgs
				if err := decode(args, &a); err != nil {
					return err
				}
				if a.ParentID == "" {
					return fmt.Errorf("required parameter 'parent_id' is missing")
				}
				if a.NodeType == "" {
					return fmt.Errorf("required parameter 'node_type' is missing")
				}
				return nil
			},
		},
		{
			Name:        "delete_node",
			Description: "Delete a node and its subtree",
			Validate:    validateNodeID,
		},
		{
			Name:        "run_script",
			Description: "Run a script inside the plugin runtime",
			Validate: func(args json.RawMessage) error {
				var a runScriptArgs
				if err := decode(args, &a); err != nil {
					return err
				}
				if a.Source == "" {
					return fmt.Errorf("required parameter 'source' is missing")
				}
				if a.TimeoutMs < 0 {
					return fmt.Errorf("'timeout_ms' must not be negative")
				}
				return nil
			},
		},
		{
			Name:        "export_asset",
			Description: "Export a node as an image asset",
			Validate: func(args json.RawMessage) error {
				var a exportAssetArgs
				if err := decode(args, &a); err != nil {
					return err
				}
				if a.NodeID == "" {
					return fmt.Errorf("required parameter 'node_id' is missing")
				}
				if a.Format != "" && !exportFormats[a.Format] {
					return fmt.Errorf("invalid format %q: must be png, jpg, svg, or pdf", a.Format)
				}
				if a.Scale < 0 {
					return fmt.Errorf("'scale' must not be negative")
				}
				return nil
			},
		},
	}
}

func validateNodeID(args json.RawMessage) error {
	var a nodeArgs
	if err := decode(args, &a); err != nil {
		return err
	}
	if a.NodeID == "" {
		return fmt.Errorf("required parameter 'node_id' is missing")
	}
	return nil
}

// NewBuiltinRegistry creates a registry pre-loaded with the built-in catalog.
func NewBuiltinRegistry(submitter Submitter, opts ...RegistryOption) (*Registry, error) {
	r, err := NewRegistry(submitter, opts...)
	if err != nil {
		return nil, err
	}
	for _, def := range BuiltinDefinitions() {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}
