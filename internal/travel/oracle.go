// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package travel is the travel-time oracle client: the one external
// collaborator the planning core talks to beyond persistence. WAS
// calls it exactly once per run, before building its model, for every
// (origin cluster, destination cluster) pair its candidate visits
// could possibly need.
package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/pkg/auth"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/metrics"
	"github.com/vwp-nl/fieldplan-core/pkg/middleware"
	"github.com/vwp-nl/fieldplan-core/pkg/performance"
	"github.com/vwp-nl/fieldplan-core/pkg/pool"
	"github.com/vwp-nl/fieldplan-core/pkg/retry"
)

// batchConcurrency is the bounded per-call concurrency for the
// routing API.
const batchConcurrency = 10

// Pair identifies one origin/destination cluster lookup.
type Pair struct {
	OriginClusterID      model.ID
	DestinationClusterID model.ID
}

// CacheStore is the persistence half of the cache-through contract.
// internal/store's in-memory fake and a real database-backed store
// both satisfy it.
type CacheStore interface {
	CacheGet(origin, destination model.ID) (minutes int, ok bool)
	CachePutMany(rows []model.TravelTimeCache)
}

// RouteClient does the actual external HTTP lookup. It returns only
// pairs it could resolve; a missing pair is treated as "unknown",
// never zero.
type RouteClient interface {
	RouteMinutes(ctx context.Context, origin, destination string) (int, error)
}

// Oracle is the batched, cached, bounded-concurrency travel-time
// lookup solvers depend on. It is built once per request and its
// cache-through behaviour is mandatory: every successful external
// lookup is written back to CacheStore before being returned.
type Oracle struct {
	client  RouteClient
	cache   CacheStore
	logger  logging.Logger
	metrics metrics.Collector

	addressOf func(clusterID model.ID) (string, bool)
}

// Option configures an optional Oracle dependency beyond the required
// client/cache/addressOf/logger set.
type Option func(*Oracle)

// WithMetrics records a cache hit for every pair TravelMinutesBatch
// resolves from CacheStore and a cache miss for every pair it has to
// fall through to the external routing API for.
func WithMetrics(collector metrics.Collector) Option {
	return func(o *Oracle) { o.metrics = collector }
}

// New builds an Oracle. addressOf resolves a cluster id to the
// free-text or coordinate address the routing API expects; it is
// typically backed by the same cluster snapshot the calling solver
// already holds.
func New(client RouteClient, cache CacheStore, addressOf func(model.ID) (string, bool), logger logging.Logger, opts ...Option) *Oracle {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	o := &Oracle{client: client, cache: cache, addressOf: addressOf, logger: logger, metrics: metrics.NoOpCollector{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetMetrics rewires the Oracle's cache hit/miss counters after
// construction, for callers (like internal/httpapi) that build their
// metrics.Collector alongside, rather than before, the Oracle.
func (o *Oracle) SetMetrics(collector metrics.Collector) {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	o.metrics = collector
}

// TravelMinutesBatch resolves every pair, consulting the cache first
// and falling back to the bounded-concurrency external lookup for
// misses. Pairs the client could not resolve are simply absent from
// the returned map.
func (o *Oracle) TravelMinutesBatch(ctx context.Context, pairs []Pair) map[Pair]int {
	result := make(map[Pair]int, len(pairs))
	var toFetch []Pair

	for _, p := range pairs {
		if p.OriginClusterID == p.DestinationClusterID {
			result[p] = 0
			continue
		}
		if minutes, ok := o.cache.CacheGet(p.OriginClusterID, p.DestinationClusterID); ok {
			o.metrics.RecordCacheHit(cacheKey(p))
			result[p] = minutes
			continue
		}
		o.metrics.RecordCacheMiss(cacheKey(p))
		toFetch = append(toFetch, p)
	}

	if len(toFetch) == 0 {
		return result
	}

	type fetched struct {
		pair    Pair
		minutes int
		ok      bool
	}

	out := make(chan fetched, len(toFetch))
	sem := make(chan struct{}, batchConcurrency)
	var wg sync.WaitGroup

	for _, p := range toFetch {
		wg.Add(1)
		sem <- struct{}{}
		go func(p Pair) {
			defer wg.Done()
			defer func() { <-sem }()

			originAddr, ok1 := o.addressOf(p.OriginClusterID)
			destAddr, ok2 := o.addressOf(p.DestinationClusterID)
			if !ok1 || !ok2 {
				out <- fetched{pair: p, ok: false}
				return
			}
			minutes, err := o.client.RouteMinutes(ctx, originAddr, destAddr)
			if err != nil {
				o.logger.Warn("travel oracle lookup failed", "origin", p.OriginClusterID, "destination", p.DestinationClusterID, "error", err)
				out <- fetched{pair: p, ok: false}
				return
			}
			out <- fetched{pair: p, minutes: minutes, ok: true}
		}(p)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var toCache []model.TravelTimeCache
	for f := range out {
		if !f.ok {
			continue
		}
		result[f.pair] = f.minutes
		toCache = append(toCache, model.TravelTimeCache{
			OriginClusterID:      f.pair.OriginClusterID,
			DestinationClusterID: f.pair.DestinationClusterID,
			Minutes:              f.minutes,
		})
	}

	if len(toCache) > 0 {
		sort.Slice(toCache, func(i, j int) bool {
			if toCache[i].OriginClusterID != toCache[j].OriginClusterID {
				return toCache[i].OriginClusterID < toCache[j].OriginClusterID
			}
			return toCache[i].DestinationClusterID < toCache[j].DestinationClusterID
		})
		o.cache.CachePutMany(toCache)
	}

	return result
}

// cacheKey renders a Pair as the metrics key pkg/metrics tracks hit/miss
// counters under.
func cacheKey(p Pair) string {
	return fmt.Sprintf("%d->%d", p.OriginClusterID, p.DestinationClusterID)
}

// HTTPRouteClient implements RouteClient against an external routing
// API keyed by GOOGLE_MAPS_API_KEY, using a pooled, retried outbound
// client.
type HTTPRouteClient struct {
	BaseURL string
	authP   auth.Provider
	pool    *pool.HTTPClientPool
	backoff retry.Policy
	cache   *performance.ResponseCache
	client  *http.Client
}

// NewHTTPRouteClient builds a client reading its API key from
// GOOGLE_MAPS_API_KEY. baseURL defaults to the Google Distance Matrix
// endpoint. The pooled transport is wrapped in pkg/middleware's request
// ID and structured-logging RoundTrippers; retries stay on the
// separate pkg/retry policy below since that one already understands
// distance-matrix response bodies, not just status codes.
//
// strictAvailability mirrors config.SolverSettings.FeatureStrictAvailability:
// when set, cached routes are kept for only an hour instead of a day,
// since that flag already means the caller wants the freshest possible
// view of availability and routing alike.
func NewHTTPRouteClient(baseURL string, logger logging.Logger, strictAvailability bool) *HTTPRouteClient {
	if baseURL == "" {
		baseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	}
	clientPool := pool.NewHTTPClientPool(pool.DefaultPoolConfig(), logger)
	pooled := clientPool.GetClient(baseURL)
	chain := middleware.Chain(
		middleware.WithRequestID(func() string { return uuid.NewString() }),
		middleware.WithLogging(logger),
	)
	profile := performance.ProfileHighThroughput
	if strictAvailability {
		profile = performance.ProfileConservative
	}
	return &HTTPRouteClient{
		BaseURL: baseURL,
		authP:   auth.NewAPIKeyAuth(os.Getenv("GOOGLE_MAPS_API_KEY"), "key"),
		pool:    clientPool,
		backoff: retry.NewRouteBackoff(),
		cache:   performance.NewResponseCache(performance.GetCacheConfigForProfile(profile)),
		client:  &http.Client{Transport: chain(pooled.Transport), Timeout: pooled.Timeout},
	}
}

type distanceMatrixResponse struct {
	Rows []struct {
		Elements []struct {
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
			Status string `json:"status"`
		} `json:"elements"`
	} `json:"rows"`
}

// RouteMinutes performs one origin/destination lookup, applying the
// response cache and exponential-backoff retry policy before falling
// through to the network.
func (c *HTTPRouteClient) RouteMinutes(ctx context.Context, origin, destination string) (int, error) {
	params := map[string]interface{}{"origin": origin, "destination": destination}
	if cached, ok := c.cache.Get("route.compute", params); ok {
		var minutes int
		if err := json.Unmarshal(cached, &minutes); err == nil {
			return minutes, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return 0, err
	}
	q := req.URL.Query()
	q.Set("origins", origin)
	q.Set("destinations", destination)
	req.URL.RawQuery = q.Encode()
	if err := c.authP.Authenticate(ctx, req); err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.backoff.MaxRetries(); attempt++ {
		resp, err := c.client.Do(req)
		if c.backoff.ShouldRetryResponse(ctx, resp, err, attempt) {
			lastErr = err
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.backoff.WaitTime(attempt)):
			}
			continue
		}
		if err != nil {
			return 0, err
		}

		minutes, status, decErr := decodeDistanceMatrix(resp)
		if decErr != nil {
			return 0, decErr
		}
		if status != "OK" {
			if c.backoff.ShouldRetryElementStatus(status, attempt) {
				lastErr = fmt.Errorf("travel: element status %q", status)
				select {
				case <-ctx.Done():
					return 0, ctx.Err()
				case <-time.After(c.backoff.WaitTime(attempt)):
				}
				continue
			}
			return 0, fmt.Errorf("travel: element status %q", status)
		}

		if encoded, mErr := json.Marshal(minutes); mErr == nil {
			c.cache.Set("route.compute", params, encoded)
		}
		return minutes, nil
	}
	if lastErr != nil {
		return 0, lastErr
	}
	return 0, fmt.Errorf("travel: exhausted retries")
}

// decodeDistanceMatrix reads the first element of a distance-matrix
// response body, returning its travel time in whole minutes and its
// raw element status (e.g. "OK", "OVER_QUERY_LIMIT", "ZERO_RESULTS").
func decodeDistanceMatrix(resp *http.Response) (minutes int, status string, err error) {
	defer resp.Body.Close()
	var parsed distanceMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, "", err
	}
	if len(parsed.Rows) == 0 || len(parsed.Rows[0].Elements) == 0 {
		return 0, "", fmt.Errorf("travel: empty distance matrix response")
	}
	el := parsed.Rows[0].Elements[0]
	return el.Duration.Value / 60, el.Status, nil
}
