// Package helpers holds small parsing and output helpers shared by the CLIs.
package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gazelleryanwalker/agentic-crm-production/src/memory/model"
)

// ParseCSVList splits a comma separated flag value, dropping blanks.
func ParseCSVList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseMemoryType accepts a memory type name in any case. Empty input is allowed
// and returns the zero type, which filters nothing.
func ParseMemoryType(raw string) (model.MemoryType, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	t := model.MemoryType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown memory type %q (want user, session or agent)", raw)
	}
	return t, nil
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
