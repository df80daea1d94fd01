package server

import (
	"fmt"
	"gamewarden/internal/domain"
	"sort"
	"strings"
)

// Registry maps logical server names to their account descriptors. It is
// built once at startup and never mutated, so lookups need no locking.
type Registry struct {
	profiles map[string]domain.ServerProfile
	names    []string
}

func NewRegistry(profiles []domain.ServerProfile) (*Registry, error) {
	r := &Registry{
		profiles: make(map[string]domain.ServerProfile, len(profiles)),
		names:    make([]string, 0, len(profiles)),
	}

	for i, p := range profiles {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("server profile %d: empty name", i)
		}
		if _, exists := r.profiles[name]; exists {
			return nil, fmt.Errorf("server profile %q: duplicate name", name)
		}
		p.Name = name
		r.profiles[name] = p
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r, nil
}

func (r *Registry) Lookup(name string) (domain.ServerProfile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return domain.ServerProfile{}, fmt.Errorf("%w: %q", domain.ErrUnknownServer, name)
	}
	return p, nil
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) Len() int { return len(r.names) }
