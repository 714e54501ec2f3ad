package pipeline

import (
	"sort"

	"github.com/curbwatch/curbwatch/internal/types"
	"github.com/curbwatch/curbwatch/pkg/geo"
)

// MatchStops pairs every camera with the stops inside the link radius.  The
// index is built over stops once and queried per camera.  A camera with
// invalid coordinates simply produces no links; the stops it might have
// served degrade through the no-observation rule instead.
func MatchStops(cameras []types.Camera, stops []types.Stop, radiusMeters float64) []types.CameraStopLink {
	index := geo.NewIndex(radiusMeters)
	stopsByID := make(map[string]types.Stop, len(stops))
	for _, stop := range stops {
		// Directory feeds occasionally repeat a stop; indexing it twice
		// would duplicate every link it appears in.
		if _, seen := stopsByID[stop.ID]; seen {
			continue
		}
		if index.Insert(stop.ID, geo.Point{Latitude: stop.Location.Latitude, Longitude: stop.Location.Longitude}) {
			stopsByID[stop.ID] = stop
		}
	}

	var links []types.CameraStopLink
	for _, camera := range cameras {
		center := geo.Point{Latitude: camera.Location.Latitude, Longitude: camera.Location.Longitude}
		if !geo.Valid(center) {
			continue
		}
		for _, stopID := range index.Query(center, radiusMeters) {
			stop := stopsByID[stopID]
			links = append(links, types.CameraStopLink{
				CameraID: camera.ID,
				StopID:   stop.ID,
				DistanceMeters: geo.Distance(center,
					geo.Point{Latitude: stop.Location.Latitude, Longitude: stop.Location.Longitude}),
			})
		}
	}

	// Bucket iteration order is not stable; sort so cycles are reproducible.
	sort.Slice(links, func(i, j int) bool {
		if links[i].CameraID != links[j].CameraID {
			return links[i].CameraID < links[j].CameraID
		}
		return links[i].StopID < links[j].StopID
	})

	return links
}
