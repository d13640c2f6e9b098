package docfile

import (
	"fmt"

	"github.com/groundlabs/grounddb/internal/ground"
)

// ParseFile parses raw bytes according to shape, returning one Document per
// record (a single-element slice for md/json shapes, one element per line
// for jsonl).
func ParseFile(shape Shape, data []byte) ([]Document, error) {
	switch shape {
	case ShapeMD:
		doc, err := ParseMD(data)
		if err != nil {
			return nil, err
		}

		return []Document{doc}, nil
	case ShapeJSON:
		doc, err := ParseJSON(data)
		if err != nil {
			return nil, err
		}

		return []Document{doc}, nil
	case ShapeJSONL:
		return ParseJSONL(data)
	default:
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("unknown document shape %q", shape)}
	}
}

// RenderFile renders one record as bytes for its shape. Not valid for jsonl,
// which is rendered per-collection via RenderJSONL.
func RenderFile(shape Shape, fields map[string]any, body string, opts MarshalOptions) ([]byte, error) {
	switch shape {
	case ShapeMD:
		return RenderMD(fields, body, opts)
	case ShapeJSON:
		return RenderJSON(fields, opts)
	default:
		return nil, &ground.Error{Kind: ground.KindSchema, Err: fmt.Errorf("shape %q does not render as a single file", shape)}
	}
}
