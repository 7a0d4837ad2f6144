package sgdive

// DiveSummary contains the summary information over one processed dive.
// Conceptually a 4 dimensional extent description consisting of
// (x, y, z, t).
type DiveSummary struct {
	StartTimeS   float64
	EndTimeS     float64
	MinLongitude float64
	MaxLongitude float64
	MinLatitude  float64
	MaxLatitude  float64
	MinDepth     float64
	MaxDepth     float64
}

// Summary computes the geometrical and temporal extent of the processed
// dive.
func (r *Results) Summary() DiveSummary {
	s := DiveSummary{}
	if len(r.TimeS) == 0 {
		return s
	}
	s.StartTimeS = r.TimeS[0]
	s.EndTimeS = r.TimeS[len(r.TimeS)-1]

	first := true
	for i := range r.DepthM {
		if first {
			s.MinDepth, s.MaxDepth = r.DepthM[i], r.DepthM[i]
			first = false
			continue
		}
		if r.DepthM[i] < s.MinDepth {
			s.MinDepth = r.DepthM[i]
		}
		if r.DepthM[i] > s.MaxDepth {
			s.MaxDepth = r.DepthM[i]
		}
	}
	first = true
	for i := range r.Latitude {
		if first {
			s.MinLatitude, s.MaxLatitude = r.Latitude[i], r.Latitude[i]
			s.MinLongitude, s.MaxLongitude = r.Longitude[i], r.Longitude[i]
			first = false
			continue
		}
		if r.Latitude[i] < s.MinLatitude {
			s.MinLatitude = r.Latitude[i]
		}
		if r.Latitude[i] > s.MaxLatitude {
			s.MaxLatitude = r.Latitude[i]
		}
		if r.Longitude[i] < s.MinLongitude {
			s.MinLongitude = r.Longitude[i]
		}
		if r.Longitude[i] > s.MaxLongitude {
			s.MaxLongitude = r.Longitude[i]
		}
	}
	return s
}
