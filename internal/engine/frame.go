// SPDX-License-Identifier: MIT
package engine

import "rave/internal/vis"

// FeatureFrame is one analysis cycle's worth of features, published
// atomically after every block. Renderers and transports read whole frames;
// fields are never updated in place after publication.
type FeatureFrame struct {
	// Band energies are mean spectral magnitudes over the configured ranges.
	Bass float64 `json:"bass"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`

	// Volume is the time-domain RMS of the analysis block.
	Volume float64 `json:"volume"`

	// Beat and TrebleHit are edge events: true only on the frame where the
	// onset was detected, never held across frames.
	Beat      bool `json:"beat"`
	TrebleHit bool `json:"trebleHit"`

	// Intensity is the smoothed, gated drive level in [0, 1].
	Intensity float64 `json:"intensity"`

	Mode vis.Mode `json:"mode"`

	// Transport state for HUD display.
	Track    string  `json:"track,omitempty"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"playing"`
}
