package agent

import "errors"

// Profile is a named set of instructions and model configuration for a
// specific advice domain. Profiles are immutable and statically registered;
// they are looked up by name and never mutated at runtime.
type Profile struct {
	Name         string
	Instructions string
	Model        string
}

// DefaultProfileName is the fallback used whenever routing cannot pick a
// more specific domain agent.
const DefaultProfileName = "general"

var ErrUnknownProfile = errors.New("agent: unknown profile")

// Registry is a read-only lookup table of agent profiles. Build it once at
// startup; concurrent reads need no locking because the map is never written
// after construction.
type Registry struct {
	profiles    map[string]Profile
	defaultName string
}

// NewRegistry builds a registry from the given profiles. The default profile
// must be present.
func NewRegistry(defaultName string, profiles ...Profile) (*Registry, error) {
	if defaultName == "" {
		return nil, errors.New("agent: default profile name is required")
	}
	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return nil, errors.New("agent: profile name is required")
		}
		m[p.Name] = p
	}
	if _, ok := m[defaultName]; !ok {
		return nil, errors.New("agent: default profile not registered")
	}
	return &Registry{profiles: m, defaultName: defaultName}, nil
}

// Find returns the profile registered under name.
func (r *Registry) Find(name string) (Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Default returns the fallback profile.
func (r *Registry) Default() Profile {
	return r.profiles[r.defaultName]
}

// Names returns the registered profile names. Order is unspecified.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		out = append(out, n)
	}
	return out
}

// BuiltinProfiles returns the statically shipped agent set. The model is
// injected from config so all profiles ride the same realtime deployment.
func BuiltinProfiles(model string) []Profile {
	return []Profile{
		{
			Name:  "general",
			Model: model,
			Instructions: "You are a helpful voice assistant. Answer briefly and naturally, " +
				"as on a real phone call. If the caller's request fits a specialist " +
				"topic you cannot handle, say so and offer what you can.",
		},
		{
			Name:  "billing",
			Model: model,
			Instructions: "You are a billing support voice agent. Help callers understand " +
				"charges, invoices, and payment options. Never invent amounts; ask the " +
				"caller to confirm details you are not certain about.",
		},
		{
			Name:  "scheduling",
			Model: model,
			Instructions: "You are a scheduling voice agent. Help callers book, move, or " +
				"cancel appointments. Confirm date, time, and contact details back to " +
				"the caller before finishing.",
		},
		{
			Name:  "support",
			Model: model,
			Instructions: "You are a technical support voice agent. Diagnose step by step, " +
				"one question at a time, and keep instructions short enough to follow " +
				"by ear.",
		},
	}
}
