package estimation

import "math"

// cmPerKm folds the centimeter ground sample distance into kilometers.
const cmPerKm = 100000

// SpeedKmps converts a pixel displacement observed over elapsedSeconds into
// ground speed in km/s, given the ground sample distance in cm per pixel.
func SpeedKmps(pixelDisplacement, gsdCmPerPixel, elapsedSeconds float64) (float64, error) {
	switch {
	case math.IsNaN(elapsedSeconds), math.IsInf(elapsedSeconds, 0):
		return 0, &ElapsedTimeError{Seconds: elapsedSeconds, cause: ErrNonFiniteElapsedTime}
	case elapsedSeconds == 0:
		return 0, &ElapsedTimeError{Seconds: elapsedSeconds, cause: ErrZeroElapsedTime}
	case elapsedSeconds < 0:
		return 0, &ElapsedTimeError{Seconds: elapsedSeconds, cause: ErrNegativeElapsedTime}
	}
	distanceKm := pixelDisplacement * gsdCmPerPixel / cmPerKm
	return distanceKm / elapsedSeconds, nil
}
