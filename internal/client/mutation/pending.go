package mutation

import "sync"

// Key identifies one relation toggle: who did what to which target.
type Key struct {
	Target   string
	Relation string
	Actor    string
}

type pendingEntry struct {
	ref        string
	resolvedAt uint64
	inFlight   int
	want       bool
}

// Pending overlays in-flight relation writes on top of the registry.
// An entry stays authoritative while a write is in flight and until a
// snapshot newer than the write's resolution has been applied.
type Pending struct {
	entries map[Key]*pendingEntry
	mu      sync.Mutex
}

// NewPending creates an empty overlay.
func NewPending() *Pending {
	return &Pending{entries: make(map[Key]*pendingEntry)}
}

// Effective returns the relation state seen through the overlay.
func (p *Pending) Effective(k Key, cached bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[k]; ok {
		return e.want
	}
	return cached
}

// Flip inverts the effective state and registers the write. It returns the
// new wanted state and the id recorded by an earlier write on the same key.
func (p *Pending) Flip(k Key, cached bool) (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[k]
	if !ok {
		e = &pendingEntry{want: cached}
		p.entries[k] = e
	}
	e.want = !e.want
	e.inFlight++
	return e.want, e.ref
}

// Begin registers a write towards want. It returns false, registering
// nothing, when the effective state already equals want.
func (p *Pending) Begin(k Key, cached, want bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[k]
	if !ok {
		if cached == want {
			return false
		}
		e = &pendingEntry{}
		p.entries[k] = e
	} else if e.want == want {
		return false
	}
	e.want = want
	e.inFlight++
	return true
}

// Done records a successful write resolved while the registry was at
// generation gen. ref, when set, remembers the id the write produced.
func (p *Pending) Done(k Key, gen uint64, ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[k]
	if !ok {
		return
	}
	if e.inFlight > 0 {
		e.inFlight--
	}
	if ref != "" {
		e.ref = ref
	}
	if gen > e.resolvedAt {
		e.resolvedAt = gen
	}
}

// Fail forgets the key so that reads fall back to the registry.
func (p *Pending) Fail(k Key) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, k)
}

// Applied drops every settled entry older than generation gen.
func (p *Pending) Applied(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, e := range p.entries {
		if e.inFlight == 0 && gen > e.resolvedAt {
			delete(p.entries, k)
		}
	}
}

// Reset forgets everything, e.g. when the actor changes.
func (p *Pending) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.entries)
}
