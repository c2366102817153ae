package anyfs

// Layer standardizes middleware composition. A Layer wraps an inner
// backend B and produces a wrapped backend W that implements the same
// capability set it intercepts, passing through anything it doesn't.
//
// Layers may be builder-configured (see each middleware package's
// Builder type); builders for middleware whose zero-configuration is
// meaningless are typestated so that Layer() is unreachable until at
// least one setting has been made, a compile-time invariant rather than
// a runtime check.
type Layer[B any, W any] interface {
	Layer(backend B) (W, error)
}

// LayerFunc adapts a plain function to the Layer interface.
type LayerFunc[B any, W any] func(backend B) (W, error)

// Layer implements Layer.
func (f LayerFunc[B, W]) Layer(backend B) (W, error) { return f(backend) }
