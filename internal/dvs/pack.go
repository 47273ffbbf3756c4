package dvs

import "image"

// assignedEpsilon distinguishes never-assigned raw time-surface pixels (zero)
// from real timestamps.
const assignedEpsilon = 1e-3

// NormFlowPack bundles the output of one extraction cycle: the flow set, the
// inlier-occupancy mask, the raw time-surface and polarity maps the flows
// were derived from, and two diagnostic overlays. A pack is owned by the
// caller and lives for one analysis cycle.
type NormFlowPack struct {
	// TimestampSec is the surface's latest timestamp at snapshot time.
	TimestampSec float64

	// Flows are the extracted normal-flow measurements.
	Flows []NormFlow

	// InlierOccupancy marks every pixel used as a RANSAC inlier by some
	// flow. It is a subset of the pixels with a non-zero raw time surface.
	InlierOccupancy *PixelMask

	// Polarities and RawTimes are the snapshot maps, shared read-only with
	// downstream consumers.
	Polarities *PolarityMap
	RawTimes   *ScalarMap

	// SeedImage marks candidate anchors on the decayed time surface: red =
	// selected but unverified, green = verified. FlowImage overlays the flow
	// directions.
	SeedImage *image.RGBA
	FlowImage *image.RGBA
}

// ActivePseudoEvents reconstructs a synthetic event batch from every pixel
// whose raw timestamp lies within window seconds of the snapshot time,
// regardless of whether it anchored a flow. Intended for visualization and
// comparison, not further fitting.
//
// The returned batch always carries a non-nil Events slice; an empty result
// is len(Events) == 0. This convention holds for all derived views.
func (p *NormFlowPack) ActivePseudoEvents(window float64) EventBatch {
	events := []Event{}
	for y := 0; y < p.RawTimes.Height; y++ {
		for x := 0; x < p.RawTimes.Width; x++ {
			et := p.RawTimes.At(x, y)
			if et < assignedEpsilon || p.TimestampSec-et > window {
				continue
			}
			events = append(events, Event{
				TimestampSec: et,
				X:            x,
				Y:            y,
				Polarity:     p.Polarities.At(x, y) > 0,
			})
		}
	}
	return NewEventBatch(events)
}

// InlierPseudoEvents reconstructs a synthetic event batch from the pixels
// marked inlier-occupied. Same empty-result convention as
// ActivePseudoEvents.
func (p *NormFlowPack) InlierPseudoEvents() EventBatch {
	events := []Event{}
	for y := 0; y < p.RawTimes.Height; y++ {
		for x := 0; x < p.RawTimes.Width; x++ {
			et := p.RawTimes.At(x, y)
			if et < assignedEpsilon || !p.InlierOccupancy.At(x, y) {
				continue
			}
			events = append(events, Event{
				TimestampSec: et,
				X:            x,
				Y:            y,
				Polarity:     p.Polarities.At(x, y) > 0,
			})
		}
	}
	return NewEventBatch(events)
}
