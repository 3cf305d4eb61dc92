package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/your-org/mediaforge/internal/fault"
)

// ErrNotFound is returned by Source implementations when no profile document
// exists for the requested name.
var ErrNotFound = errors.New("profile not found")

// Source yields profile documents by name.
type Source interface {
	GetProfile(ctx context.Context, name string) (*Profile, error)
}

// Resolver turns (profile, objectKey) pairs into object specs. It performs no
// caching: the backing store is consulted on every call.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve fails fast with ProfileNotFound/ObjectNotFound so invalid requests
// never cause transform or upload side effects.
func (r *Resolver) Resolve(ctx context.Context, profileName, objectKey string) (*Profile, *ObjectSpec, error) {
	p, err := r.source.GetProfile(ctx, profileName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fault.New(fault.KindProfileNotFound, "profile %q", profileName)
		}
		return nil, nil, fmt.Errorf("load profile %q: %w", profileName, err)
	}

	spec, ok := p.Objects[objectKey]
	if !ok {
		return nil, nil, fault.New(fault.KindObjectNotFound, "object %q in profile %q", objectKey, profileName)
	}
	if len(spec.MimeTypes) == 0 {
		return nil, nil, fmt.Errorf("object %q in profile %q has no mime types configured", objectKey, profileName)
	}
	return p, &spec, nil
}
