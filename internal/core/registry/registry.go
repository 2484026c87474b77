// Package registry maps object-key prefixes to model and pattern
// plugins, following impress/registry.py's Registry and IntervalProxy.
//
// A `[type]` configuration line is "<prefix-chars> <model-id>
// [<pattern-id>]"; per the original's parse_type_config, <prefix-chars>
// is exploded one character at a time into distinct registry entries
// (not treated as a character class to match against), and Lookup
// dispatches an object key by its first character. ParseObjectType
// (the text before the first underscore) is a separate helper that
// Lookup does not use.
package registry

import (
	"fmt"
	"strings"

	"github.com/yndnr/slotcache-go/internal/core/model"
	"github.com/yndnr/slotcache-go/internal/core/slot"
	"github.com/yndnr/slotcache-go/internal/core/timeline"
)

// Plugin groups the model and optional pattern bound to one object
// type prefix.
type Plugin struct {
	ModelID   string
	Model     model.CacheModel
	TimelineModel model.TimelineModel
	PatternID string
	Pattern   timeline.Pattern
}

// ModelFactory and PatternFactory resolve a configured identifier to
// the concrete plugin implementation. The engine never imports a model
// or pattern package directly outside of this indirection, matching
// the "capability-bearing opaque module" design in spec.md §9.
type ModelFactory func(id string) (model.CacheModel, model.TimelineModel, error)
type PatternFactory func(id string) (timeline.Pattern, error)

// Registry dispatches object keys to plugins.
type Registry struct {
	models   ModelFactory
	patterns PatternFactory
	types    map[string]Plugin
}

// New constructs a Registry; models/patterns resolve identifiers found
// in the `[type]` configuration section.
func New(models ModelFactory, patterns PatternFactory) *Registry {
	return &Registry{
		models:   models,
		patterns: patterns,
		types:    make(map[string]Plugin),
	}
}

// TypeConfigLine is one `[type]` section entry: "<prefix-chars>
// <model-id> [<pattern-id>]".
type TypeConfigLine struct {
	Name  string // the config key, for error messages only
	Value string
}

// Reconfigure rebuilds the type table from the given configuration
// lines, replacing whatever was registered before (spec.md §4.7
// SIGHUP: "reload configuration and model/pattern registry").
func (r *Registry) Reconfigure(lines []TypeConfigLine) error {
	types := make(map[string]Plugin)

	for _, line := range lines {
		prefixes, modelID, patternID, err := ParseTypeConfig(line.Value)
		if err != nil {
			return fmt.Errorf("registry: type %s: %w", line.Name, err)
		}

		cacheModel, timelineModel, err := r.models(modelID)
		if err != nil {
			return fmt.Errorf("registry: type %s: model %q: %w", line.Name, modelID, err)
		}

		var pattern timeline.Pattern
		if patternID != "" {
			pattern, err = r.patterns(patternID)
			if err != nil {
				return fmt.Errorf("registry: type %s: pattern %q: %w", line.Name, patternID, err)
			}
		}

		plugin := Plugin{
			ModelID:       modelID,
			Model:         cacheModel,
			TimelineModel: timelineModel,
			PatternID:     patternID,
			Pattern:       pattern,
		}

		for _, prefix := range prefixes {
			types[prefix] = plugin
		}
	}

	r.types = types
	return nil
}

// ParseTypeConfig parses one `[type]` value, mirroring
// Registry.parse_type_config: tokens[0] is exploded into one prefix
// per character, tokens[1] is the model id, an optional tokens[2] is
// the pattern id.
func ParseTypeConfig(value string) (prefixes []string, modelID string, patternID string, err error) {
	tokens := strings.Fields(value)
	switch len(tokens) {
	case 2:
		return explode(tokens[0]), tokens[1], "", nil
	case 3:
		return explode(tokens[0]), tokens[1], tokens[2], nil
	default:
		return nil, "", "", fmt.Errorf("registry: bad type configuration: %q", value)
	}
}

func explode(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// ParseObjectType returns the type prefix of an object key: the text
// before its first underscore (impress/registry.py's
// parse_object_type), or the whole key if there is no underscore.
func ParseObjectType(objkey string) string {
	if i := strings.IndexByte(objkey, '_'); i >= 0 {
		return objkey[:i]
	}
	return objkey
}

// Lookup returns the plugin bound to objkey's first character. An
// empty objkey matches nothing.
func (r *Registry) Lookup(objkey string) (Plugin, bool) {
	for _, c := range objkey {
		plugin, ok := r.types[string(c)]
		return plugin, ok
	}
	return Plugin{}, false
}

// ModelLookup adapts Lookup to the slot.ModelLookup signature
// consumed by Slot.Add/Store/LoadBackup.
func (r *Registry) ModelLookup() slot.ModelLookup {
	return func(objkey string) (model.CacheModel, error) {
		plugin, ok := r.Lookup(objkey)
		if !ok {
			return nil, fmt.Errorf("registry: no model configured for key %q", objkey)
		}
		return plugin.Model, nil
	}
}

// CommonModel returns the single CacheModel shared by every key in
// objkeys, or an error if they resolve to incompatible models
// (impress/registry.py's get_common_model).
func (r *Registry) CommonModel(objkeys []string) (model.CacheModel, error) {
	var found model.CacheModel
	seenType := ""

	for _, key := range objkeys {
		plugin, ok := r.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("registry: no model configured for key %q", key)
		}
		if found == nil {
			found = plugin.Model
			seenType = plugin.ModelID
			continue
		}
		if plugin.ModelID != seenType {
			return nil, fmt.Errorf("registry: incompatible object types in %v", objkeys)
		}
	}

	if found == nil {
		return nil, fmt.Errorf("registry: no object keys given")
	}
	return found, nil
}
