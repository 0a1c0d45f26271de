package execctx

// noCopy may be embedded into structs which must not be copied after first use.
// go vet's copylocks check reports any copy.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock() {}

// Unlock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Unlock() {}
