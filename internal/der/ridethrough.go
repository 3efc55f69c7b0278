package der

import "dersim/internal/config"

// Operating status labels reported with every output.
const (
	StatusNormal      = "Normal Operation"
	StatusRideThrough = "Ride-Through"
	StatusTrip        = "Trip"
)

// Enter service window after a trip.
const (
	enterServiceVMin  = 0.917
	enterServiceVMax  = 1.05
	enterServiceDelay = 300.0
)

// tripSetting is one voltage protection element: trip when the voltage stays
// beyond Level for Clearing seconds.
type tripSetting struct {
	Level    float64
	Clearing float64
	Over     bool
}

func (s tripSetting) exceeded(vmin, vmax float64) bool {
	if s.Over {
		return vmax > s.Level
	}
	return vmin < s.Level
}

// tripSettings returns OV2, OV1, UV1 and UV2 defaults for cat.
func tripSettings(cat config.AbnormalCategory) []tripSetting {
	ov2 := tripSetting{Level: 1.2, Clearing: 0.16, Over: true}
	switch cat {
	case config.CategoryI:
		return []tripSetting{ov2, {1.1, 2, true}, {0.7, 2, false}, {0.45, 0.16, false}}
	case config.CategoryIII:
		return []tripSetting{ov2, {1.1, 13, true}, {0.88, 21, false}, {0.5, 2, false}}
	default:
		return []tripSetting{ov2, {1.1, 2, true}, {0.7, 10, false}, {0.45, 0.16, false}}
	}
}

// rideThrough tracks how long each protection element has been picked up.
type rideThrough struct {
	settings []tripSetting
	elapsed  []float64
	tripped  bool
	inWindow float64
}

func newRideThrough(cat config.AbnormalCategory) *rideThrough {
	s := tripSettings(cat)
	return &rideThrough{settings: s, elapsed: make([]float64, len(s))}
}

// step advances the relay by dt seconds and returns the status label.
func (r *rideThrough) step(vmin, vmax, dt float64) string {
	if r.tripped {
		if vmin >= enterServiceVMin && vmax <= enterServiceVMax {
			r.inWindow += dt
		} else {
			r.inWindow = 0
		}
		if r.inWindow < enterServiceDelay {
			return StatusTrip
		}
		r.tripped = false
		r.inWindow = 0
	}
	picked := false
	for i, s := range r.settings {
		if !s.exceeded(vmin, vmax) {
			r.elapsed[i] = 0
			continue
		}
		picked = true
		r.elapsed[i] += dt
		if r.elapsed[i] >= s.Clearing {
			r.tripped = true
		}
	}
	switch {
	case r.tripped:
		for i := range r.elapsed {
			r.elapsed[i] = 0
		}
		return StatusTrip
	case picked:
		return StatusRideThrough
	}
	return StatusNormal
}
