package music

import "sync"

// Registry maps a guild to the text channel bound for status messages
// and to its live transport handle. One binding per guild.
//
// The registry never unbinds on its own; the orchestrator decides when
// a binding goes away.
type Registry struct {
	mu         sync.Mutex
	bindings   map[string]string
	transports map[string]any
}

func NewRegistry() *Registry {
	return &Registry{
		bindings:   make(map[string]string),
		transports: make(map[string]any),
	}
}

// Bind associates guildID with textChannelID. Re-binding the same
// channel is a no-op; a different channel fails with ErrAlreadyBound.
func (r *Registry) Bind(guildID, textChannelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.bindings[guildID]; ok && cur != textChannelID {
		return ErrAlreadyBound
	}
	r.bindings[guildID] = textChannelID
	return nil
}

func (r *Registry) Unbind(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, guildID)
}

func (r *Registry) Binding(guildID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.bindings[guildID]
	return ch, ok
}

func (r *Registry) SetTransport(guildID string, handle any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if handle == nil {
		delete(r.transports, guildID)
		return
	}
	r.transports[guildID] = handle
}

func (r *Registry) Transport(guildID string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.transports[guildID]
	return h, ok
}
