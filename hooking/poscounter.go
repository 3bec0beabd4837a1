package hooking

// PosCounter counts how many times each hook position fired.
type PosCounter struct {
	names  []string
	counts map[string]uint64
}

// NewPosCounter creates a new PosCounter.
func NewPosCounter() *PosCounter {
	return &PosCounter{
		counts: make(map[string]uint64),
	}
}

// Func counts the position of the context.
func (c *PosCounter) Func(ctx HookCtx) {
	name := ctx.Pos.Name

	if _, ok := c.counts[name]; !ok {
		c.names = append(c.names, name)
	}

	c.counts[name]++
}

// Names returns the positions seen, in the order first seen.
func (c *PosCounter) Names() []string {
	return c.names
}

// Count returns the number of times the named position fired.
func (c *PosCounter) Count(name string) uint64 {
	return c.counts[name]
}
