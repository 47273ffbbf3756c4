package dvs

import (
	"image"
	"testing"
)

func TestIdentityUndistortMap(t *testing.T) {
	m := IdentityUndistortMap(5, 4)
	src := NewScalarMap(5, 4)
	src.Set(3, 2, 42.5)
	out := m.ApplyScalar(src)
	for i := range src.Values {
		if out.Values[i] != src.Values[i] {
			t.Fatalf("identity remap changed value at %d", i)
		}
	}
}

func TestUndistortMapZeroDistortionIsIdentity(t *testing.T) {
	intri := PinholeIntrinsics{
		Width: 8, Height: 6,
		Fx: 100, Fy: 100, Cx: 4, Cy: 3,
	}
	m := NewUndistortMap(intri)
	src := NewScalarMap(8, 6)
	for i := range src.Values {
		src.Values[i] = float64(i)
	}
	out := m.ApplyScalar(src)
	for i := range src.Values {
		if out.Values[i] != src.Values[i] {
			t.Fatalf("zero-distortion remap moved pixel %d", i)
		}
	}
}

func TestUndistortMapPrincipalPointFixed(t *testing.T) {
	// Radial distortion vanishes at the principal point, so the centre
	// pixel always samples itself.
	intri := PinholeIntrinsics{
		Width: 9, Height: 9,
		Fx: 120, Fy: 120, Cx: 4, Cy: 4,
		K1: -0.3, K2: 0.1,
	}
	m := NewUndistortMap(intri)
	src := NewScalarMap(9, 9)
	src.Set(4, 4, 7.0)
	out := m.ApplyScalar(src)
	if out.At(4, 4) != 7.0 {
		t.Errorf("principal point remapped away: got %v", out.At(4, 4))
	}
}

func TestUndistortMapPolarityAndImages(t *testing.T) {
	m := IdentityUndistortMap(4, 4)

	pmap := NewPolarityMap(4, 4)
	pmap.Set(1, 2, -1)
	if got := m.ApplyPolarity(pmap).At(1, 2); got != -1 {
		t.Errorf("polarity remap = %d, want -1", got)
	}

	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	gray.Pix[2*4+1] = 200
	if got := m.ApplyGray(gray).GrayAt(1, 2).Y; got != 200 {
		t.Errorf("gray remap = %d, want 200", got)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.SetRGBA(3, 3, colorPositive)
	if got := m.ApplyRGBA(rgba).RGBAAt(3, 3); got != colorPositive {
		t.Errorf("rgba remap = %v, want %v", got, colorPositive)
	}
}
