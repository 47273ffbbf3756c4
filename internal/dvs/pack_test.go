package dvs

import (
	"testing"
)

func buildTestPack() *NormFlowPack {
	rts := NewScalarMap(6, 6)
	pmap := NewPolarityMap(6, 6)
	occ := NewPixelMask(6, 6)

	rts.Set(1, 1, 0.90)
	pmap.Set(1, 1, 1)
	rts.Set(2, 1, 0.95)
	pmap.Set(2, 1, -1)
	rts.Set(4, 4, 0.40) // stale relative to the snapshot time
	pmap.Set(4, 4, 1)

	occ.Set(2, 1, true)

	return &NormFlowPack{
		TimestampSec:    1.0,
		Flows:           []NormFlow{{X: 2, Y: 1, TimestampSec: 0.95, VX: 3, VY: 0}},
		InlierOccupancy: occ,
		Polarities:      pmap,
		RawTimes:        rts,
		SeedImage:       renderEventImage(6, 6, nil),
		FlowImage:       renderEventImage(6, 6, nil),
	}
}

func TestActivePseudoEvents(t *testing.T) {
	pack := buildTestPack()

	batch := pack.ActivePseudoEvents(0.2)
	if len(batch.Events) != 2 {
		t.Fatalf("active events = %d, want 2 (stale pixel excluded)", len(batch.Events))
	}
	// Row-major reconstruction; representative timestamp is the last event's.
	if batch.Events[0].X != 1 || batch.Events[0].Y != 1 || !batch.Events[0].Polarity {
		t.Errorf("first event = %+v, want positive (1,1)", batch.Events[0])
	}
	if batch.Events[1].X != 2 || batch.Events[1].Polarity {
		t.Errorf("second event = %+v, want negative (2,1)", batch.Events[1])
	}
	if batch.TimestampSec != 0.95 {
		t.Errorf("batch timestamp = %v, want 0.95", batch.TimestampSec)
	}

	// A wider window admits the stale pixel too.
	if got := len(pack.ActivePseudoEvents(0.7).Events); got != 3 {
		t.Errorf("active events with 0.7s window = %d, want 3", got)
	}
}

func TestInlierPseudoEvents(t *testing.T) {
	pack := buildTestPack()
	batch := pack.InlierPseudoEvents()
	if len(batch.Events) != 1 {
		t.Fatalf("inlier events = %d, want 1", len(batch.Events))
	}
	e := batch.Events[0]
	if e.X != 2 || e.Y != 1 || e.TimestampSec != 0.95 || e.Polarity {
		t.Errorf("inlier event = %+v, want negative (2,1) at 0.95", e)
	}
}

func TestPseudoEventsEmptyConvention(t *testing.T) {
	pack := &NormFlowPack{
		TimestampSec:    1.0,
		Flows:           []NormFlow{},
		InlierOccupancy: NewPixelMask(4, 4),
		Polarities:      NewPolarityMap(4, 4),
		RawTimes:        NewScalarMap(4, 4),
	}
	active := pack.ActivePseudoEvents(1.0)
	if active.Events == nil || len(active.Events) != 0 {
		t.Errorf("active events = %#v, want non-nil empty slice", active.Events)
	}
	inlier := pack.InlierPseudoEvents()
	if inlier.Events == nil || len(inlier.Events) != 0 {
		t.Errorf("inlier events = %#v, want non-nil empty slice", inlier.Events)
	}
}

func TestRenderComposesFourPanels(t *testing.T) {
	pack := buildTestPack()
	img := pack.Render(0.2)
	if img.Rect.Dx() != 12 || img.Rect.Dy() != 12 {
		t.Fatalf("render size = %dx%d, want 12x12 (2x2 panels of 6x6)", img.Rect.Dx(), img.Rect.Dy())
	}
	// Bottom-left panel holds the active-event reconstruction: pixel (1,1)
	// of the panel is the positive event.
	if got := img.RGBAAt(1, 6+1); got != colorPositive {
		t.Errorf("active panel pixel = %v, want %v", got, colorPositive)
	}
	// Bottom-right panel holds the inlier reconstruction: (2,1) negative.
	if got := img.RGBAAt(6+2, 6+1); got != colorNegative {
		t.Errorf("inlier panel pixel = %v, want %v", got, colorNegative)
	}
}
