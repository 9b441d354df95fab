package detectorsim

import (
	"math/rand"
	"time"
)

// Per-tick probabilities for each detector channel, modeled on what a webcam
// proctoring pipeline typically produces: the face channel is almost always
// fine, attention drifts now and then, and prohibited objects are rare.
const (
	probFocusLost     = 0.10
	probNoFace        = 0.04
	probMultipleFaces = 0.01
	probPhone         = 0.03
	probNotes         = 0.02
	probDevice        = 0.01
	probDrowsiness    = 0.02
	probAudioAnomaly  = 0.02
)

// Confidence ranges per channel. Object detections come with lower confidence
// than the face channel.
const (
	faceConfidenceMin   = 0.85
	faceConfidenceRange = 0.15
	objConfidenceMin    = 0.55
	objConfidenceRange  = 0.40
)

// detection is one simulated detector output.
type detection struct {
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	TS         string  `json:"ts"`
}

// detector simulates the per-session detection pipeline. Each tick runs every
// channel independently, so one tick can yield several detections. The face
// and focus channels are stateful: losing focus emits FOCUS_LOST once and a
// FOCUS_RESTORED when attention returns, rather than spamming one event per
// tick.
type detector struct {
	rng *rand.Rand

	focusLost bool
	faceLost  bool
}

func newDetector(rng *rand.Rand) *detector {
	return &detector{rng: rng}
}

// tick advances the simulation by one step and returns the detections it
// produced, stamped with ts.
func (d *detector) tick(ts time.Time) []detection {
	var out []detection
	stamp := ts.UTC().Format(time.RFC3339)

	emit := func(kind string, confidence float64) {
		out = append(out, detection{Kind: kind, Confidence: confidence, TS: stamp})
	}

	// Focus channel: toggles between lost and restored.
	if d.focusLost {
		if d.rng.Float64() < 0.5 {
			d.focusLost = false
			emit("FOCUS_RESTORED", d.faceConfidence())
		}
	} else if d.rng.Float64() < probFocusLost {
		d.focusLost = true
		emit("FOCUS_LOST", d.faceConfidence())
	}

	// Face channel: no face and multiple faces are mutually exclusive.
	if d.faceLost {
		if d.rng.Float64() < 0.7 {
			d.faceLost = false
			emit("FACE_RESTORED", d.faceConfidence())
		}
	} else {
		switch roll := d.rng.Float64(); {
		case roll < probNoFace:
			d.faceLost = true
			emit("NO_FACE", d.faceConfidence())
		case roll < probNoFace+probMultipleFaces:
			emit("MULTIPLE_FACES", d.faceConfidence())
		}
	}

	// Object channels: independent, stateless.
	if d.rng.Float64() < probPhone {
		emit("PHONE_DETECTED", d.objConfidence())
	}
	if d.rng.Float64() < probNotes {
		emit("NOTES_DETECTED", d.objConfidence())
	}
	if d.rng.Float64() < probDevice {
		emit("DEVICE_DETECTED", d.objConfidence())
	}

	// Behavioral channels.
	if d.rng.Float64() < probDrowsiness {
		emit("DROWSINESS", d.faceConfidence())
	}
	if d.rng.Float64() < probAudioAnomaly {
		emit("AUDIO_ANOMALY", d.objConfidence())
	}

	return out
}

func (d *detector) faceConfidence() float64 {
	return faceConfidenceMin + d.rng.Float64()*faceConfidenceRange
}

func (d *detector) objConfidence() float64 {
	return objConfidenceMin + d.rng.Float64()*objConfidenceRange
}

// deductionPoints mirrors the service's default scoring schedule so the
// verification step can predict the expected score.
var deductionPoints = map[string]int{
	"FOCUS_LOST":      2,
	"NO_FACE":         5,
	"MULTIPLE_FACES":  10,
	"PHONE_DETECTED":  15,
	"NOTES_DETECTED":  10,
	"DEVICE_DETECTED": 10,
	"DROWSINESS":      3,
	"AUDIO_ANOMALY":   2,
}

// expectedScore computes the score the service should report for the given
// recorded detection counts.
func expectedScore(counts map[string]int) int {
	score := 100
	for kind, count := range counts {
		score -= deductionPoints[kind] * count
	}
	if score < 0 {
		score = 0
	}
	return score
}
