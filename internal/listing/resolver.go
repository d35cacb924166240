// Package listing resolves listing-type tags and ids into the price basis and
// payout beneficiary the booking flow needs.
package listing

import (
	"context"
	"errors"
	"fmt"

	"rentescrow/internal/database"
	"rentescrow/internal/domain"
	"rentescrow/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidListingType = errors.New("invalid listing type")
	ErrNotFound           = errors.New("listing not found")
	ErrRoomTypeNotFound   = errors.New("room type not found")
	ErrNoRoomTypes        = errors.New("listing has no room types")
)

// Resolver resolves one listing kind.
type Resolver interface {
	Kind() string
	Resolve(ctx context.Context, id int64) (*models.ResolvedListing, error)
}

// RoomTypeResolver is implemented by resolvers whose listings are priced per room type.
type RoomTypeResolver interface {
	RoomType(ctx context.Context, listingID, roomTypeID int64) (*models.RoomType, error)
}

func toResolved(l *models.Listing) *models.ResolvedListing {
	return &models.ResolvedListing{
		Type:          l.Kind,
		ID:            l.ID,
		Title:         l.Title,
		MonthlyRent:   l.MonthlyRent,
		LeaseTerm:     l.LeaseTerm,
		BeneficiaryID: l.OwnerID,
		Bank:          l.Bank,
	}
}

func lookup(ctx context.Context, store domain.ListingStore, kind string, id int64) (*models.ResolvedListing, error) {
	l, err := store.GetPublishedListing(ctx, kind, id)
	if errors.Is(err, database.ErrListingNotFound) {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, err
	}
	return toResolved(l), nil
}

// PropertyResolver resolves landlord and agent listings; the beneficiary is the
// landlord or the agent that submitted the listing.
type PropertyResolver struct {
	kind  string
	store domain.ListingStore
}

func NewPropertyResolver(kind string, store domain.ListingStore) *PropertyResolver {
	return &PropertyResolver{kind: kind, store: store}
}

func (r *PropertyResolver) Kind() string { return r.kind }

func (r *PropertyResolver) Resolve(ctx context.Context, id int64) (*models.ResolvedListing, error) {
	return lookup(ctx, r.store, r.kind, id)
}

// HotelResolver resolves hotel listings. The beneficiary is the hotel operator.
type HotelResolver struct {
	store domain.ListingStore
}

func NewHotelResolver(store domain.ListingStore) *HotelResolver {
	return &HotelResolver{store: store}
}

func (r *HotelResolver) Kind() string { return models.ListingHotel }

func (r *HotelResolver) Resolve(ctx context.Context, id int64) (*models.ResolvedListing, error) {
	return lookup(ctx, r.store, models.ListingHotel, id)
}

func (r *HotelResolver) RoomType(ctx context.Context, hotelID, roomTypeID int64) (*models.RoomType, error) {
	rt, err := r.store.GetHotelRoomType(ctx, hotelID, roomTypeID)
	if errors.Is(err, database.ErrRoomTypeNotFound) {
		return nil, fmt.Errorf("%w: room type %d in hotel %d", ErrRoomTypeNotFound, roomTypeID, hotelID)
	}
	return rt, err
}

// Registry picks the resolver registered for a listing-type tag and caches results.
type Registry struct {
	resolvers map[string]Resolver
	cache     domain.CacheRepository
	logger    *zerolog.Logger
}

func NewRegistry(cache domain.CacheRepository, logger *zerolog.Logger, resolvers ...Resolver) *Registry {
	r := &Registry{
		resolvers: make(map[string]Resolver, len(resolvers)),
		cache:     cache,
		logger:    logger,
	}
	for _, res := range resolvers {
		r.resolvers[res.Kind()] = res
	}
	return r
}

// NewDefaultRegistry registers the landlord, agent and hotel resolvers over one store.
func NewDefaultRegistry(store domain.ListingStore, cache domain.CacheRepository, logger *zerolog.Logger) *Registry {
	return NewRegistry(cache, logger,
		NewPropertyResolver(models.ListingLandlord, store),
		NewPropertyResolver(models.ListingAgent, store),
		NewHotelResolver(store),
	)
}

func (r *Registry) resolver(listingType string) (Resolver, error) {
	res, ok := r.resolvers[listingType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidListingType, listingType)
	}
	return res, nil
}

// Resolve returns the published listing. Cache failures are logged and bypassed.
func (r *Registry) Resolve(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	return r.resolve(ctx, listingType, id, true)
}

// ResolveFresh skips the cache read. Payouts use it so bank details are current.
func (r *Registry) ResolveFresh(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	return r.resolve(ctx, listingType, id, false)
}

func (r *Registry) resolve(ctx context.Context, listingType string, id int64, useCache bool) (*models.ResolvedListing, error) {
	res, err := r.resolver(listingType)
	if err != nil {
		return nil, err
	}

	if useCache && r.cache != nil {
		cached, err := r.cache.GetListing(ctx, listingType, id)
		if err != nil {
			r.logger.Warn().Err(err).Str("listing_type", listingType).Int64("listing_id", id).Msg("listing cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	resolved, err := res.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetListing(ctx, resolved); err != nil {
			r.logger.Warn().Err(err).Str("listing_type", listingType).Int64("listing_id", id).Msg("listing cache write failed")
		}
	}
	return resolved, nil
}

// RoomType returns a room type of the listing, if its kind is priced per room.
func (r *Registry) RoomType(ctx context.Context, listingType string, listingID, roomTypeID int64) (*models.RoomType, error) {
	res, err := r.resolver(listingType)
	if err != nil {
		return nil, err
	}
	rooms, ok := res.(RoomTypeResolver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoomTypes, listingType)
	}
	return rooms.RoomType(ctx, listingID, roomTypeID)
}

// Invalidate drops a cached listing, e.g. after its bank details change.
func (r *Registry) Invalidate(ctx context.Context, listingType string, id int64) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateListing(ctx, listingType, id)
}
