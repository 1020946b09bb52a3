package fhir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Resource is a clinical resource in its open JSON form. Stage code treats
// the content as opaque apart from the identity fields and the extension
// list; everything else passes through untouched.
type Resource map[string]any

// Key identifies the real-world entity a resource denotes. Two resources
// with an equal key are the same entity and must be merged, never duplicated.
type Key struct {
	Type string
	ID   string
}

const (
	// UnknownType stands in for a missing resourceType tag.
	UnknownType = "Unknown"
	// UnknownID stands in for a missing id so every resource has some key.
	UnknownID = "unknown"
)

func (k Key) String() string {
	return k.Type + "-" + k.ID
}

// ResourceType returns the resource's type tag, or UnknownType when absent.
func (r Resource) ResourceType() string {
	if v, ok := r["resourceType"].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return UnknownType
}

// ID returns the resource's own identifier, or UnknownID when absent.
func (r Resource) ID() string {
	if v, ok := r["id"].(string); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return UnknownID
}

// Identity returns the (resourceType, id) key with defaulting applied.
func (r Resource) Identity() Key {
	return Key{Type: r.ResourceType(), ID: r.ID()}
}

// Extensions returns the resource's extension list, nil when absent or not a
// list.
func (r Resource) Extensions() []any {
	v, ok := r["extension"].([]any)
	if !ok {
		return nil
	}
	return v
}

// SetExtensions replaces the resource's extension list.
func (r Resource) SetExtensions(ext []any) {
	r["extension"] = ext
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (r Resource) Clone() Resource {
	if r == nil {
		return nil
	}
	out := make(Resource, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Resource:
		return map[string]any(t.Clone())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// DecodeList decodes a JSON array of resources.
func DecodeList(data []byte) ([]Resource, error) {
	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("decode resource list: %w", err)
	}
	return resources, nil
}

// EncodeList encodes resources as an indented JSON array for staging files.
func EncodeList(resources []Resource) ([]byte, error) {
	if resources == nil {
		resources = []Resource{}
	}
	data, err := json.MarshalIndent(resources, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource list: %w", err)
	}
	return data, nil
}
