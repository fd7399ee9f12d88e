package scene

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// prototype is the nominal radial speed of a class.
type prototype struct {
	class    messages.ThreatClass
	speed    float64 // |v| m/s
	priority float64 // base priority at full confidence
}

var prototypes = []prototype{
	{messages.ThreatClutter, 0, 0.5},
	{messages.ThreatDrone, 8, 5},
	{messages.ThreatAircraft, 30, 6.5},
	{messages.ThreatMissile, 55, 9},
}

// Classifier is a speed-prototype heuristic. The zero value is usable.
type Classifier struct {
	// Sharpness scales the log-speed distance before the softmax; larger
	// values give more confident verdicts. Zero means 2.
	Sharpness float64
	// MinConfidence below which the class is reported as unknown. Zero
	// means 0.35.
	MinConfidence float64
}

// Classify returns one assessment per confirmed or coasting track.
// Provisional tracks get no output.
func (c Classifier) Classify(tracks []messages.TrackReport) []messages.ThreatAssessment {
	sharp := c.Sharpness
	if sharp <= 0 {
		sharp = 2
	}
	minConf := c.MinConfidence
	if minConf <= 0 {
		minConf = 0.35
	}

	out := make([]messages.ThreatAssessment, 0, len(tracks))
	logits := make([]float64, len(prototypes))
	probs := make([]float64, len(prototypes))
	for _, tr := range tracks {
		if tr.State != messages.TrackConfirmed && tr.State != messages.TrackCoasting {
			continue
		}
		ls := math.Log1p(math.Abs(tr.Velocity))
		for k, p := range prototypes {
			d := ls - math.Log1p(p.speed)
			logits[k] = -sharp * d * d
		}
		lse := floats.LogSumExp(logits)
		for k := range logits {
			probs[k] = math.Exp(logits[k] - lse)
		}
		best := floats.MaxIdx(probs)

		// Poorly supported tracks are less certain.
		conf := probs[best] * (0.5 + 0.5*tr.Quality)
		class := prototypes[best].class
		if conf < minConf {
			class = messages.ThreatUnknown
		}

		// Inbound targets rank higher than outbound ones.
		closing := 1.0
		if tr.Velocity < 0 {
			closing = 1.2
		} else if tr.Velocity > 0 {
			closing = 0.8
		}
		priority := math.Min(messages.MaxThreatPriority, prototypes[best].priority*conf*closing)
		if class == messages.ThreatUnknown {
			priority = math.Min(priority, 2)
		}

		out = append(out, messages.ThreatAssessment{
			TrackID:    tr.ID,
			Class:      class,
			Confidence: conf,
			Entropy:    stat.Entropy(probs),
			Priority:   priority,
		})
	}
	return out
}
