package xscript

import (
	"encoding/json"
	"fmt"
	"sort"
)

// JSONToXML converts a JSON document to the Node tree HttpBlock needs when
// an upstream declares `application/json` (spec.md §4.4 step 7). Objects
// become an element per key; arrays become one <item> child element per
// entry, a convention modelled on the C++ implementation's
// mist-block JSON helpers use for round-tripping structured data
// (original_source/mist-block, see DESIGN.md).
func JSONToXML(root string, data []byte) (*Node, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("xscript: invalid json: %w", err)
	}
	n := NewElement(root)
	jsonValueToNode(n, v)
	return n, nil
}

func jsonValueToNode(n *Node, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := NewElement(k)
			jsonValueToNode(child, t[k])
			n.AppendChild(child)
		}
	case []any:
		for _, item := range t {
			child := NewElement("item")
			jsonValueToNode(child, item)
			n.AppendChild(child)
		}
	case string:
		n.SetText(t)
	case nil:
		// leave empty
	default:
		n.SetText(fmt.Sprintf("%v", t))
	}
}
