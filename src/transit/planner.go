package transit

import (
	"accessbus/src/types"
	"context"
	"log"
	"sort"
	"time"
)

type Planner struct {
	Catalog  *Catalog
	Feed     VehicleFeed
	Routes   []Route
	SpeedKmh float64
	Now      func() time.Time
}

var planner *Planner

func NewPlanner(p *Planner) {
	planner = p
}

// GetPlanner defaults to the embedded catalog and a simulated feed.
func GetPlanner() *Planner {
	if planner != nil {
		return planner
	}
	c := DefaultCatalog()
	planner = &Planner{
		Catalog:  c,
		Feed:     NewSimulatedFeed(c, DefaultRoutes),
		Routes:   DefaultRoutes,
		SpeedKmh: 21,
		Now:      time.Now,
	}
	return planner
}

func (p *Planner) route(id string) (Route, bool) {
	for _, r := range p.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

func (p *Planner) RoutesServing(originID, destinationID string) []Route {
	var out []Route
	for _, r := range p.Routes {
		if !r.Serves(originID) {
			continue
		}
		if destinationID != "" && !r.Serves(destinationID) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Timetables returns the earliest vehicle of every route that serves both
// stops, soonest first. An empty destination matches any route through origin.
func (p *Planner) Timetables(ctx context.Context, originID, destinationID string) ([]types.Timetable, error) {
	origin, err := p.Catalog.Get(originID)
	if err != nil {
		return nil, err
	}
	if destinationID != "" {
		if _, err := p.Catalog.Get(destinationID); err != nil {
			return nil, err
		}
	}
	now := p.Now()
	out := []types.Timetable{}
	for _, r := range p.RoutesServing(originID, destinationID) {
		vehicles, err := p.Feed.Vehicles(ctx, r.ID)
		if err != nil {
			log.Printf("Error reading vehicles for route %s: %s\n", r.ID, err.Error())
			continue
		}
		var best *types.Timetable
		for _, v := range vehicles {
			mins := ArrivalMinutes(Haversine(v.Latitude, v.Longitude, origin.Latitude, origin.Longitude), p.SpeedKmh)
			if best != nil && best.ArrivalMin <= mins {
				continue
			}
			best = &types.Timetable{
				RouteID:     r.ID,
				RouteName:   r.Name,
				VehicleID:   v.ID,
				ArrivalMin:  mins,
				ArrivalTime: now.Add(time.Duration(mins) * time.Minute).Format("15:04"),
				SeatsEmpty:  v.SeatsEmpty,
				RampType:    v.RampType,
			}
		}
		if best != nil {
			out = append(out, *best)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ArrivalMin < out[j].ArrivalMin
	})
	return out, nil
}

// Estimate is what the feed currently says about a booked vehicle.
type Estimate struct {
	RouteID     string
	RouteName   string
	SeatsEmpty  int
	RampType    types.RampType
	ArrivalMin  int
	ArrivalTime string
	Street      string
}

// Describe estimates when vehicleID reaches originID. Missing vehicles still
// yield the stop street so the caller can render something.
func (p *Planner) Describe(ctx context.Context, originID, vehicleID string) (Estimate, error) {
	origin, err := p.Catalog.Get(originID)
	if err != nil {
		return Estimate{}, err
	}
	est := Estimate{Street: origin.Street}
	v, err := p.Feed.Vehicle(ctx, vehicleID)
	if err != nil {
		return est, err
	}
	est.RouteID = v.RouteID
	est.RouteName = v.RouteID
	if r, ok := p.route(v.RouteID); ok {
		est.RouteName = r.Name
	}
	est.SeatsEmpty = v.SeatsEmpty
	est.RampType = v.RampType
	est.ArrivalMin = ArrivalMinutes(Haversine(v.Latitude, v.Longitude, origin.Latitude, origin.Longitude), p.SpeedKmh)
	est.ArrivalTime = p.Now().Add(time.Duration(est.ArrivalMin) * time.Minute).Format("15:04")
	return est, nil
}

// DistanceTo returns the km between (lat, lon) and stopID.
func (p *Planner) DistanceTo(stopID string, lat, lon float64) (float64, error) {
	s, err := p.Catalog.Get(stopID)
	if err != nil {
		return 0, err
	}
	return Haversine(lat, lon, s.Latitude, s.Longitude), nil
}
