package anyfs

// SelfResolving is implemented by backends that perform their own path
// resolution (host-filesystem-backed backends that delegate to the OS).
// The FileStorage façade type-switches on this marker to decide whether
// to run the vpath canonicalization engine before forwarding a call, or
// to pass the path through unchanged.
//
// SelfResolvingMarker is a no-op method; its only purpose is to exist so
// a type assertion against the interface succeeds.
type SelfResolving interface {
	SelfResolvingMarker()
}

// IsSelfResolving reports whether backend b carries the SelfResolving
// marker.
func IsSelfResolving(b any) bool {
	_, ok := b.(SelfResolving)
	return ok
}
