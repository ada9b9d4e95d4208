package resolve

// Resolver looks up the export serving an import.
type Resolver interface {
	Resolve(namespace, name string) (Export, bool)
}

// Func adapts a function to a Resolver.
type Func func(namespace, name string) (Export, bool)

// Resolve calls f.
func (f Func) Resolve(namespace, name string) (Export, bool) {
	return f(namespace, name)
}

// Map is a static resolver: namespace -> name -> export.
type Map map[string]map[string]Export

// Define sets namespace.name, replacing any previous export.
func (m Map) Define(namespace, name string, e Export) {
	set, ok := m[namespace]
	if !ok {
		set = make(map[string]Export)
		m[namespace] = set
	}
	set[name] = e
}

// Resolve implements Resolver.
func (m Map) Resolve(namespace, name string) (Export, bool) {
	e, ok := m[namespace][name]
	return e, ok
}

type chain struct {
	back  Resolver
	front Resolver
}

// Chain composes two resolvers. A name served by front shadows the same name
// in back; back answers only what front does not. Neither input is copied or
// modified, so later changes to either are visible through the chain. A nil
// input is skipped.
func Chain(back, front Resolver) Resolver {
	switch {
	case back == nil:
		return front
	case front == nil:
		return back
	}
	return &chain{back: back, front: front}
}

func (c *chain) Resolve(namespace, name string) (Export, bool) {
	if e, ok := c.front.Resolve(namespace, name); ok {
		return e, true
	}
	return c.back.Resolve(namespace, name)
}
