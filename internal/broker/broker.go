// Package broker hands out time-boxed signed URLs for photos kept in a
// private object store, and owns the write path into that store.
package broker

import (
	"context"
	"fmt"
	"time"

	"memoryland-backend/internal/imageproc"
	"memoryland-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const deleteConcurrency = 8

// Options configures a Broker
type Options struct {
	URLLifetime  time.Duration
	CacheTTL     time.Duration
	MaxDimension uint
}

// Broker converts (owner, key) pairs into signed URLs
type Broker struct {
	store storage.ObjectStore
	cache URLCache
	opts  Options
}

// New creates a broker. A nil cache disables URL caching.
func New(store storage.ObjectStore, cache URLCache, opts Options) *Broker {
	if opts.CacheTTL >= opts.URLLifetime {
		opts.CacheTTL = opts.URLLifetime / 2
	}
	return &Broker{store: store, cache: cache, opts: opts}
}

func container(ownerID int64) string {
	return storage.PadID(ownerID)
}

func cacheKey(ownerID int64, key string) string {
	return container(ownerID) + "/" + key
}

// ResolveViewURL returns a read-only URL for one resource. ok is false when
// the owner has no container or the resource is absent. A URL served from
// the cache was signed earlier, so it stays valid for at least
// URLLifetime minus CacheTTL rather than the full lifetime.
func (b *Broker) ResolveViewURL(ctx context.Context, ownerID int64, key string) (url string, ok bool, err error) {
	if b.cache != nil {
		cached, hit, err := b.cache.Get(ctx, cacheKey(ownerID, key))
		if err != nil {
			log.Warn().Err(err).Int64("owner_id", ownerID).Str("key", key).Msg("URL cache read failed")
		} else if hit {
			return cached, true, nil
		}
	}

	exists, err := b.store.ContainerExists(ctx, container(ownerID))
	if err != nil {
		return "", false, fmt.Errorf("failed to check container: %w", err)
	}
	if !exists {
		return "", false, nil
	}

	exists, err = b.store.Exists(ctx, container(ownerID), key)
	if err != nil {
		return "", false, fmt.Errorf("failed to check object: %w", err)
	}
	if !exists {
		return "", false, nil
	}

	url, err = b.store.PresignGet(ctx, container(ownerID), key, b.opts.URLLifetime)
	if err != nil {
		return "", false, err
	}

	if b.cache != nil {
		if err := b.cache.Set(ctx, cacheKey(ownerID, key), url, b.opts.CacheTTL); err != nil {
			log.Warn().Err(err).Int64("owner_id", ownerID).Str("key", key).Msg("URL cache write failed")
		}
	}
	return url, true, nil
}

// UploadBytes normalizes JPEG bytes and writes them, creating the owner's
// container if needed. An existing resource is overwritten.
func (b *Broker) UploadBytes(ctx context.Context, ownerID int64, key string, data []byte, contentType string) error {
	normalized, err := imageproc.Normalize(data, contentType, b.opts.MaxDimension)
	if err != nil {
		return fmt.Errorf("failed to normalize image: %w", err)
	}

	if err := b.store.EnsureContainer(ctx, container(ownerID)); err != nil {
		return err
	}
	if err := b.store.Put(ctx, container(ownerID), key, normalized, contentType); err != nil {
		return err
	}
	b.invalidate(ctx, ownerID, key)
	return nil
}

// DeleteResources deletes every key that is present. Missing keys are
// skipped.
func (b *Broker) DeleteResources(ctx context.Context, ownerID int64, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	exists, err := b.store.ContainerExists(ctx, container(ownerID))
	if err != nil {
		return fmt.Errorf("failed to check container: %w", err)
	}
	if !exists {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := b.store.Delete(gctx, container(ownerID), key); err != nil {
				return fmt.Errorf("failed to delete %s: %w", key, err)
			}
			b.invalidate(gctx, ownerID, key)
			return nil
		})
	}
	return g.Wait()
}

func (b *Broker) invalidate(ctx context.Context, ownerID int64, key string) {
	if b.cache == nil {
		return
	}
	if err := b.cache.Delete(ctx, cacheKey(ownerID, key)); err != nil {
		log.Warn().Err(err).Int64("owner_id", ownerID).Str("key", key).Msg("URL cache invalidation failed")
	}
}
