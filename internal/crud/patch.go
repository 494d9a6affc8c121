package crud

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyPatch applies an RFC 6902 JSON Patch document to the JSON form of
// current and decodes the outcome into a new value.
func ApplyPatch[T any](current T, patch json.RawMessage) (T, error) {
	var merged T
	doc, err := json.Marshal(current)
	if err != nil {
		return merged, fmt.Errorf("encode entity: %w", err)
	}
	ops, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return merged, fmt.Errorf("decode patch: %w", err)
	}
	out, err := ops.Apply(doc)
	if err != nil {
		return merged, fmt.Errorf("apply patch: %w", err)
	}
	if err := json.Unmarshal(out, &merged); err != nil {
		return merged, fmt.Errorf("decode patched entity: %w", err)
	}
	return merged, nil
}
