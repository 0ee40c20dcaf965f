package chain

import (
	"strings"

	"github.com/ppiankov/genesis/internal/model"
	"github.com/ppiankov/genesis/internal/structured"
)

const landscapeKey = "competitive_landscape"

// nameFields are the keys models use to label a landscape entry
var nameFields = []string{"name", "robot", "entity"}

// EnsureLandscape makes the competitive landscape an array holding at
// least one entry per analyzed entity. Entries returned as an object keyed
// by robot name are converted; absent entities get a placeholder.
func EnsureLandscape(v structured.Value, in Input) structured.Value {
	entries := landscapeEntries(v.Get(landscapeKey))

	for _, e := range in.Entities {
		if hasEntry(entries, e) {
			continue
		}
		entries = append(entries, structured.Object(
			structured.Field{Key: "name", Value: structured.String(e.Name)},
			structured.Field{Key: "strengths", Value: structured.Array()},
			structured.Field{Key: "weaknesses", Value: structured.Array()},
			structured.Field{Key: "strategic_focus", Value: structured.String("No comparative data was produced for this entity.")},
		))
	}

	return v.With(landscapeKey, structured.Array(entries...))
}

func landscapeEntries(raw structured.Value) []structured.Value {
	switch raw.Kind() {
	case structured.KindArray:
		return raw.Items()
	case structured.KindObject:
		out := make([]structured.Value, 0, raw.Len())
		for _, k := range raw.Keys() {
			item := raw.Get(k)
			if item.Kind() == structured.KindObject && entryName(item) == "" {
				item = item.With("name", structured.String(k))
			}
			out = append(out, item)
		}
		return out
	default:
		return nil
	}
}

func hasEntry(entries []structured.Value, e model.Entity) bool {
	id := e.ID()
	for _, item := range entries {
		name := model.NormalizeName(entryName(item))
		if name == "" {
			continue
		}
		// "Tesla Optimus" labels the Optimus entity
		if name == id || strings.Contains(name, id) || strings.Contains(id, name) {
			return true
		}
	}
	return false
}

func entryName(item structured.Value) string {
	if s, ok := item.Str(); ok {
		return s
	}
	for _, f := range nameFields {
		if s, ok := item.Get(f).Str(); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
