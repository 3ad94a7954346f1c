package graph

import (
	"context"
	"errors"

	"github.com/jokr/taaskly/internal/models"
)

// ErrNoToken means no access token could be resolved for an event.
// The event is dropped; the platform gets its 200 either way.
var ErrNoToken = errors.New("no access token available")

// CommunityLookup is the slice of the store the resolver needs.
type CommunityLookup interface {
	GetCommunity(ctx context.Context, id int64) (*models.Community, error)
	FirstCommunity(ctx context.Context) (*models.Community, error)
}

// TokenResolver centralizes the token fallback chain: explicit token,
// then the statically configured token (custom-integration mode), then
// the community's stored token, then any installed community.
type TokenResolver struct {
	static string
	store  CommunityLookup
}

// NewTokenResolver creates a resolver. static may be empty; store may
// be nil when no database is configured.
func NewTokenResolver(static string, store CommunityLookup) *TokenResolver {
	return &TokenResolver{static: static, store: store}
}

// Resolve returns the first available token. communityID is the
// event's recipient/page/community id; zero skips the lookup.
func (r *TokenResolver) Resolve(ctx context.Context, explicit string, communityID int64) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if r.static != "" {
		return r.static, nil
	}
	if r.store != nil {
		if communityID != 0 {
			community, err := r.store.GetCommunity(ctx, communityID)
			if err != nil {
				return "", err
			}
			if community != nil {
				return community.AccessToken, nil
			}
		}
		community, err := r.store.FirstCommunity(ctx)
		if err != nil {
			return "", err
		}
		if community != nil {
			return community.AccessToken, nil
		}
	}
	return "", ErrNoToken
}
