// Package dvs implements event-camera (dynamic vision sensor) stream
// processing: the surface of active events, time-surface maps, and dense
// normal-flow extraction via local space-time plane fitting.
package dvs

// Event is a single asynchronous brightness-change report from one sensor
// pixel. Events are immutable once created.
type Event struct {
	// TimestampSec is the event time in seconds. Within one sensor stream
	// timestamps are monotonically non-decreasing.
	TimestampSec float64
	// X, Y are the pixel coordinates, bounded by the sensor resolution.
	X int
	Y int
	// Polarity is true for a brightness increase, false for a decrease.
	Polarity bool
}

// EventBatch is an ordered sequence of events sharing a representative
// timestamp (the last event's timestamp). Immutable after construction.
type EventBatch struct {
	TimestampSec float64
	Events       []Event
}

// NewEventBatch builds a batch from an ordered event slice. The
// representative timestamp is taken from the last event; an empty slice
// yields a zero-timestamp batch with a non-nil empty Events slice.
func NewEventBatch(events []Event) EventBatch {
	if len(events) == 0 {
		return EventBatch{Events: []Event{}}
	}
	return EventBatch{
		TimestampSec: events[len(events)-1].TimestampSec,
		Events:       events,
	}
}

// ScalarMap is a dense per-pixel float64 image stored row-major.
type ScalarMap struct {
	Width  int
	Height int
	Values []float64 // len = Width * Height
}

// NewScalarMap allocates a zeroed Width x Height map.
func NewScalarMap(width, height int) *ScalarMap {
	return &ScalarMap{Width: width, Height: height, Values: make([]float64, width*height)}
}

// Idx converts pixel coordinates to the flat slice index.
func (m *ScalarMap) Idx(x, y int) int { return y*m.Width + x }

// At returns the value at (x, y).
func (m *ScalarMap) At(x, y int) float64 { return m.Values[y*m.Width+x] }

// Set stores v at (x, y).
func (m *ScalarMap) Set(x, y int, v float64) { m.Values[y*m.Width+x] = v }

// Clone returns a deep copy of the map.
func (m *ScalarMap) Clone() *ScalarMap {
	out := NewScalarMap(m.Width, m.Height)
	copy(out.Values, m.Values)
	return out
}

// PolarityMap records, per pixel, which polarity produced the most recent
// retained event: +1 positive, -1 negative, 0 never assigned.
type PolarityMap struct {
	Width  int
	Height int
	Values []int8 // len = Width * Height
}

// NewPolarityMap allocates a zeroed (unset) Width x Height polarity map.
func NewPolarityMap(width, height int) *PolarityMap {
	return &PolarityMap{Width: width, Height: height, Values: make([]int8, width*height)}
}

// Idx converts pixel coordinates to the flat slice index.
func (m *PolarityMap) Idx(x, y int) int { return y*m.Width + x }

// At returns the polarity value at (x, y).
func (m *PolarityMap) At(x, y int) int8 { return m.Values[y*m.Width+x] }

// Set stores v at (x, y).
func (m *PolarityMap) Set(x, y int, v int8) { m.Values[y*m.Width+x] = v }

// PixelMask is a dense per-pixel boolean mask stored row-major.
type PixelMask struct {
	Width  int
	Height int
	Bits   []bool // len = Width * Height
}

// NewPixelMask allocates a cleared Width x Height mask.
func NewPixelMask(width, height int) *PixelMask {
	return &PixelMask{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// Idx converts pixel coordinates to the flat slice index.
func (m *PixelMask) Idx(x, y int) int { return y*m.Width + x }

// At returns whether (x, y) is set.
func (m *PixelMask) At(x, y int) bool { return m.Bits[y*m.Width+x] }

// Set marks or clears (x, y).
func (m *PixelMask) Set(x, y int, v bool) { m.Bits[y*m.Width+x] = v }

// Count returns the number of set pixels.
func (m *PixelMask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// NormFlow is one extracted normal-flow measurement: the anchor pixel, its
// representative timestamp, and the apparent pixel velocity in pixels/second.
// Flows are created only by verified plane fits and are immutable.
type NormFlow struct {
	X            int     `json:"x"`
	Y            int     `json:"y"`
	TimestampSec float64 `json:"timestamp_sec"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
}
