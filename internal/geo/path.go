package geo

// PathLength calculates the total length of a path in meters.
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// SamplePath returns points sampled at approximately the specified interval
// along the path. The first and last points are always included. Used to
// pick the probe points for per-segment risk scoring.
func SamplePath(points []Point, intervalMeters float64) []Point {
	if len(points) == 0 {
		return nil
	}
	if intervalMeters <= 0 {
		return points
	}

	sampled := []Point{points[0]}
	accumulated := 0.0

	for i := 1; i < len(points); i++ {
		cursor := points[i-1]
		segmentDist := Distance(cursor, points[i])

		for accumulated+segmentDist >= intervalMeters {
			remaining := intervalMeters - accumulated
			fraction := remaining / segmentDist

			cursor = lerp(cursor, points[i], fraction)
			sampled = append(sampled, cursor)

			segmentDist -= remaining
			accumulated = 0
		}

		accumulated += segmentDist
	}

	last := points[len(points)-1]
	if sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}

	return sampled
}

// lerp linearly interpolates between two points. Planar interpolation is
// fine at the sampling distances used here (tens of meters).
func lerp(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + t*(b.Lat-a.Lat),
		Lon: a.Lon + t*(b.Lon-a.Lon),
	}
}
