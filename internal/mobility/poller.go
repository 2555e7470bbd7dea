package mobility

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/faeterjconnect/connect/internal/backend"
)

// PollInterval is the fixed refresh period.
const PollInterval = 20 * time.Second

// Source returns raw nearby-vehicle records.
type Source interface {
	NearbyVehicles(ctx context.Context, q backend.NearbyQuery) ([]map[string]any, error)
}

// DefaultQuery is what the map view asks for: moving buses seen in the last
// five minutes within RadiusMeters.
func DefaultQuery() backend.NearbyQuery {
	return backend.NearbyQuery{
		WindowSeconds:  WindowSeconds,
		RadiusMeters:   RadiusMeters,
		IncludeStopped: false,
		MinSpeedKmh:    1,
	}
}

// Poller fetches and summarizes vehicles on a fixed interval.
type Poller struct {
	Source   Source
	Query    backend.NearbyQuery
	Interval time.Duration
	Logger   *zap.Logger
}

// NewPoller creates a poller with the default query and interval.
func NewPoller(src Source, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{Source: src, Query: DefaultQuery(), Interval: PollInterval, Logger: logger}
}

// Fetch performs one poll.
func (p *Poller) Fetch(ctx context.Context) (Snapshot, error) {
	raws, err := p.Source.NearbyVehicles(ctx, p.Query)
	if err != nil {
		return Snapshot{}, err
	}
	return Summarize(CoerceAll(raws), float64(p.Query.RadiusMeters)), nil
}

// Run polls immediately and then every Interval until ctx is cancelled.
// Failed polls are logged and reported through onUpdate's error argument;
// the loop keeps going.
func (p *Poller) Run(ctx context.Context, onUpdate func(Snapshot, error)) {
	interval := p.Interval
	if interval <= 0 {
		interval = PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := p.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.Logger.Warn("vehicle poll failed", zap.Error(err))
		}
		onUpdate(snap, err)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
