package coordinates

import "math"

// WrapLongitude shifts a stored longitude by whole turns of 360° until it
// lies within 180° of reference.
//
// Maps that repeat the world horizontally draw several copies of each
// feature. A click on a copy reports the clicked longitude, while the
// feature still carries its canonical longitude; anchoring a popup at the
// canonical value would place it on a different copy than the one the user
// is looking at.
//
// Non-finite inputs are returned unchanged.
func WrapLongitude(stored, reference float64) float64 {
	if math.IsNaN(stored) || math.IsInf(stored, 0) || math.IsNaN(reference) || math.IsInf(reference, 0) {
		return stored
	}

	// Whole turns that can be taken without overshooting the reference.
	lng := stored + 360*math.Trunc((reference-stored)/360)

	for math.Abs(reference-lng) > 180 {
		if reference > lng {
			lng += 360
		} else {
			lng -= 360
		}
	}
	return lng
}

// WrapToward returns p with its longitude wrapped toward reference.
func WrapToward(p Geographic, reference Geographic) Geographic {
	p.Longitude = WrapLongitude(p.Longitude, reference.Longitude)
	return p
}
