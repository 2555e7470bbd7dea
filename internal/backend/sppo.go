package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// NearbyVehicles returns raw vehicle records near the campus. Fields arrive
// loosely typed; the mobility package coerces them.
func (c *Client) NearbyVehicles(ctx context.Context, nq NearbyQuery) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("windowSeconds", fmt.Sprint(nq.WindowSeconds))
	q.Set("radiusMeters", fmt.Sprint(nq.RadiusMeters))
	q.Set("includeStopped", strconv.FormatBool(nq.IncludeStopped))
	q.Set("minSpeedKmh", strconv.FormatFloat(nq.MinSpeedKmh, 'f', -1, 64))

	var out []map[string]any
	if err := c.do(ctx, http.MethodGet, "/api/sppo/near", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
