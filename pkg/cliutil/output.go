package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON writes the given value as JSON to the writer.
// If verbose is true, it pretty-prints with indentation.
func WriteJSON(w io.Writer, v any, verbose bool) error {
	encoder := json.NewEncoder(w)
	if verbose {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}

// WriteLLM writes the given value as a flattened key: value block, one per
// line, which is cheaper for a language model to parse than nested JSON.
func WriteLLM(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Not an object (slice, scalar) - fall back to a single JSON line.
		_, werr := fmt.Fprintln(w, string(raw))
		return werr
	}
	for k, val := range decoded {
		if _, err := fmt.Fprintf(w, "%s: %v\n", k, val); err != nil {
			return err
		}
	}
	return nil
}
