package dossier

import "context"

// AuthResolver resolves opaque access-partitioning keys to subjects. It is
// an external collaborator: the engine calls it once per authorization check
// and propagates its failures unchanged as ErrNotAuthorized or
// ErrBadRequest.
type AuthResolver interface {
	// ResolveAuthorizationKeys maps each key to its resolved subject.
	// A key the caller may not use must be omitted from the result.
	ResolveAuthorizationKeys(ctx context.Context, keys []string) (map[string]string, error)
}

// NoneAuthResolver resolves every key to itself: single-tenant deployments
// where authKeys are used verbatim.
type NoneAuthResolver struct{}

// ResolveAuthorizationKeys implements AuthResolver.
func (NoneAuthResolver) ResolveAuthorizationKeys(_ context.Context, keys []string) (map[string]string, error) {
	resolved := make(map[string]string, len(keys))
	for _, k := range keys {
		resolved[k] = k
	}
	return resolved, nil
}
