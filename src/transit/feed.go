package transit

import (
	"accessbus/src/types"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

type Route struct {
	ID      string
	Name    string
	StopIDs []string
	Ramp    types.RampType
}

func (r Route) Serves(stopID string) bool {
	for _, id := range r.StopIDs {
		if id == stopID {
			return true
		}
	}
	return false
}

type Vehicle struct {
	ID         string
	RouteID    string
	Latitude   float64
	Longitude  float64
	SeatsEmpty int
	RampType   types.RampType
	RecordedAt time.Time
}

// VehicleFeed reports live vehicle positions.
type VehicleFeed interface {
	Vehicles(ctx context.Context, routeID string) ([]Vehicle, error)
	Vehicle(ctx context.Context, vehicleID string) (Vehicle, error)
}

// DefaultRoutes are the guided bus and city routes in the embedded catalog.
var DefaultRoutes = []Route{
	{
		ID:   "U1",
		Name: "U1",
		StopIDs: []string{
			"0500CCITY390", "0500CCITY380", "0500CCITY455", "0500CCITY291",
			"0500CCITY317", "0500CCITY054", "0500CCITY118", "0500CCITY201",
		},
		Ramp: types.RAMP_MANUAL,
	},
	{
		ID:   "U2",
		Name: "U2",
		StopIDs: []string{
			"0500CCITY462", "0500CCITY455", "0500CCITY136", "0500CCITY423",
			"0500CCITY523", "0500CCITY540", "0500CCITY054",
		},
		Ramp: types.RAMP_AUTO,
	},
	{
		ID:   "U3",
		Name: "U3",
		StopIDs: []string{
			"0500CCITY510", "0500CCITY520", "0500CCITY530", "0500CCITY101",
			"0500CCITY423", "0500CCITY600", "0500CCITY610",
		},
		Ramp: types.RAMP_MANUAL,
	},
}

// SimulatedFeed moves a fixed fleet back and forth along each route at a
// constant speed. Positions depend only on Now, so results are reproducible.
type SimulatedFeed struct {
	Catalog          *Catalog
	Routes           []Route
	VehiclesPerRoute int
	SpeedKmh         float64
	Epoch            time.Time
	Now              func() time.Time
}

func NewSimulatedFeed(c *Catalog, routes []Route) *SimulatedFeed {
	return &SimulatedFeed{
		Catalog:          c,
		Routes:           routes,
		VehiclesPerRoute: 3,
		SpeedKmh:         21,
		Epoch:            time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:              time.Now,
	}
}

func (f *SimulatedFeed) route(id string) (Route, bool) {
	for _, r := range f.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

type point struct{ lat, lon float64 }

// loop returns the out-and-back path of r with cumulative leg lengths.
func (f *SimulatedFeed) loop(r Route) ([]point, []float64, error) {
	pts := make([]point, 0, 2*len(r.StopIDs))
	for _, id := range r.StopIDs {
		s, err := f.Catalog.Get(id)
		if err != nil {
			return nil, nil, fmt.Errorf("route %s: %w", r.ID, err)
		}
		pts = append(pts, point{s.Latitude, s.Longitude})
	}
	for i := len(pts) - 2; i >= 0; i-- {
		pts = append(pts, pts[i])
	}
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + Haversine(pts[i-1].lat, pts[i-1].lon, pts[i].lat, pts[i].lon)
	}
	return pts, cum, nil
}

func (f *SimulatedFeed) Vehicles(ctx context.Context, routeID string) ([]Vehicle, error) {
	r, ok := f.route(routeID)
	if !ok {
		return nil, fmt.Errorf("unknown route %s", routeID)
	}
	pts, cum, err := f.loop(r)
	if err != nil {
		return nil, err
	}
	total := cum[len(cum)-1]
	now := f.Now()
	travelled := now.Sub(f.Epoch).Hours() * f.SpeedKmh

	vehicles := make([]Vehicle, 0, f.VehiclesPerRoute)
	for i := 0; i < f.VehiclesPerRoute; i++ {
		d := 0.0
		if total > 0 {
			d = math.Mod(travelled+float64(i)*total/float64(f.VehiclesPerRoute), total)
		}
		p := interpolate(pts, cum, d)
		ramp := r.Ramp
		if i%3 == 2 {
			ramp = types.RAMP_NONE
		}
		vehicles = append(vehicles, Vehicle{
			ID:         fmt.Sprintf("%s-v%d", r.ID, i),
			RouteID:    r.ID,
			Latitude:   p.lat,
			Longitude:  p.lon,
			SeatsEmpty: (i + len(r.StopIDs)) % 3,
			RampType:   ramp,
			RecordedAt: now,
		})
	}
	return vehicles, nil
}

func (f *SimulatedFeed) Vehicle(ctx context.Context, vehicleID string) (Vehicle, error) {
	routeID, _, ok := strings.Cut(vehicleID, "-")
	if !ok {
		return Vehicle{}, ErrVehicleNotFound
	}
	vehicles, err := f.Vehicles(ctx, routeID)
	if err != nil {
		return Vehicle{}, ErrVehicleNotFound
	}
	for _, v := range vehicles {
		if v.ID == vehicleID {
			return v, nil
		}
	}
	return Vehicle{}, ErrVehicleNotFound
}

func interpolate(pts []point, cum []float64, d float64) point {
	for i := 1; i < len(pts); i++ {
		if d <= cum[i] {
			leg := cum[i] - cum[i-1]
			if leg == 0 {
				return pts[i]
			}
			t := (d - cum[i-1]) / leg
			return point{
				lat: pts[i-1].lat + t*(pts[i].lat-pts[i-1].lat),
				lon: pts[i-1].lon + t*(pts[i].lon-pts[i-1].lon),
			}
		}
	}
	return pts[len(pts)-1]
}
