package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Governor is the two-level permit system bounding in-flight fetch work: a
// process-wide pool plus one lazily created pool per origin. Acquisition takes
// the global permit first, then the origin permit; release happens in reverse.
// Blocking acquisition is the crawl's backpressure mechanism. An optional
// inter-request delay paces each origin through a rate limiter.
type Governor struct {
	global    chan struct{}
	perOrigin sync.Map // origin -> chan struct{}
	originCap int
	delay     time.Duration
	limiters  sync.Map // origin -> *rate.Limiter
}

// NewGovernor sizes both permit pools. Sizes are fixed for the crawl.
func NewGovernor(globalLimit, perOriginLimit int, delay time.Duration) *Governor {
	if globalLimit <= 0 {
		globalLimit = 1
	}
	if perOriginLimit <= 0 {
		perOriginLimit = 1
	}
	return &Governor{
		global:    make(chan struct{}, globalLimit),
		originCap: perOriginLimit,
		delay:     delay,
	}
}

func (g *Governor) originSem(origin string) chan struct{} {
	if v, ok := g.perOrigin.Load(origin); ok {
		return v.(chan struct{})
	}
	actual, _ := g.perOrigin.LoadOrStore(origin, make(chan struct{}, g.originCap))
	return actual.(chan struct{})
}

// Acquire blocks until both permits are held, then returns the release
// function. Release order is origin first, then global.
func (g *Governor) Acquire(ctx context.Context, origin string) (func(), error) {
	select {
	case g.global <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire global permit: %w", ctx.Err())
	}

	sem := g.originSem(origin)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		<-g.global
		return nil, fmt.Errorf("acquire origin permit: %w", ctx.Err())
	}

	release := func() {
		<-sem
		<-g.global
	}

	if err := g.pace(ctx, origin); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

func (g *Governor) pace(ctx context.Context, origin string) error {
	if g.delay <= 0 {
		return nil
	}
	v, ok := g.limiters.Load(origin)
	if !ok {
		v, _ = g.limiters.LoadOrStore(origin, rate.NewLimiter(rate.Every(g.delay), 1))
	}
	if err := v.(*rate.Limiter).Wait(ctx); err != nil {
		return fmt.Errorf("wait origin pace: %w", err)
	}
	return nil
}
