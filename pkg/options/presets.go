package options

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"imgforge/pkg/forgeurl"
)

const (
	presetName  = "preset"
	presetShort = "pr"
)

// DefaultPreset is implicitly prepended to every request's directive list.
const DefaultPreset = "default"

// UnknownPresetError reports a reference to a preset that is not configured.
type UnknownPresetError struct {
	Name string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("unknown preset: %s", e.Name)
}

// PresetsOnlyError reports the first non-preset directive found while the
// server runs in presets-only mode.
type PresetsOnlyError struct {
	Directive string
}

func (e *PresetsOnlyError) Error() string {
	return fmt.Sprintf("only preset references are allowed, found: %s", e.Directive)
}

// Registry maps preset names to their directive lists. Built once at startup
// and read-only afterwards.
type Registry map[string][]forgeurl.Option

// ParseRegistry parses the IMGFORGE_PRESETS value: comma-separated
// "name=opt:arg/opt:arg" definitions. Preset references inside preset bodies
// are flattened exactly once here, so request-time expansion is a single
// substitution pass; deeper nesting is rejected.
func ParseRegistry(definitions string) (Registry, error) {
	registry := Registry{}
	if strings.TrimSpace(definitions) == "" {
		return registry, nil
	}

	for _, def := range strings.Split(definitions, ",") {
		def = strings.TrimSpace(def)
		if def == "" {
			continue
		}

		name, body, found := strings.Cut(def, "=")
		if !found {
			return nil, fmt.Errorf("invalid preset definition: %s", def)
		}
		name = strings.TrimSpace(name)
		body = strings.TrimSpace(body)
		if name == "" || body == "" {
			return nil, fmt.Errorf("invalid preset definition: %s", def)
		}

		opts, err := ParseOptionString(body)
		if err != nil {
			return nil, fmt.Errorf("invalid preset definition %q: %w", name, err)
		}
		registry[name] = opts
	}

	if err := registry.flatten(); err != nil {
		return nil, err
	}
	return registry, nil
}

// flatten substitutes preset references inside preset bodies one level deep.
// A reference that still resolves to a body containing references means the
// definition nests at least two levels, which is not supported.
func (r Registry) flatten() error {
	flattened := make(map[string][]forgeurl.Option, len(r))

	for name, body := range r {
		out := make([]forgeurl.Option, 0, len(body))
		for _, opt := range body {
			if opt.Name != presetName && opt.Name != presetShort {
				out = append(out, opt)
				continue
			}
			if len(opt.Args) == 0 {
				return fmt.Errorf("preset %q contains a preset reference without a name", name)
			}
			ref, ok := r[opt.Args[0]]
			if !ok {
				return fmt.Errorf("preset %q references unknown preset %q", name, opt.Args[0])
			}
			for _, inner := range ref {
				if inner.Name == presetName || inner.Name == presetShort {
					return fmt.Errorf("preset %q nests preset references more than one level deep", name)
				}
				out = append(out, inner)
			}
		}
		flattened[name] = out
	}

	for name, body := range flattened {
		r[name] = body
	}
	return nil
}

// ParseOptionString parses a '/'-joined directive list such as
// "resize:fit:300:300/quality:85". Empty fragments are skipped.
func ParseOptionString(s string) ([]forgeurl.Option, error) {
	var opts []forgeurl.Option
	for _, part := range strings.Split(s, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments := strings.Split(part, ":")
		opts = append(opts, forgeurl.Option{Name: segments[0], Args: segments[1:]})
	}
	return opts, nil
}

// Expand produces the effective directive list for a request: the default
// preset first, then the URL directives with preset references substituted.
// Since the registry is flattened at startup, the result never contains
// preset tokens, which makes Expand idempotent.
//
// In onlyPresets mode every URL directive must be a preset reference; the
// first offender is reported.
func Expand(opts []forgeurl.Option, registry Registry, onlyPresets bool) ([]forgeurl.Option, error) {
	if onlyPresets {
		for _, opt := range opts {
			if opt.Name != presetName && opt.Name != presetShort {
				return nil, &PresetsOnlyError{Directive: opt.Name}
			}
		}
	}

	var expanded []forgeurl.Option

	if defaults, ok := registry[DefaultPreset]; ok {
		log.Debug().Int("directives", len(defaults)).Msg("applying default preset")
		expanded = append(expanded, defaults...)
	}

	for _, opt := range opts {
		if opt.Name != presetName && opt.Name != presetShort {
			expanded = append(expanded, opt)
			continue
		}
		if len(opt.Args) == 0 {
			return nil, invalid("preset", "requires a preset name")
		}
		body, ok := registry[opt.Args[0]]
		if !ok {
			return nil, &UnknownPresetError{Name: opt.Args[0]}
		}
		expanded = append(expanded, body...)
	}

	return expanded, nil
}
