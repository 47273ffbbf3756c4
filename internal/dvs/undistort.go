package dvs

import (
	"image"
	"math"
)

// PinholeIntrinsics holds the fixed camera calibration used to build an
// undistortion remap: focal lengths, principal point, and the
// radial/tangential distortion coefficients of the Brown-Conrady model.
type PinholeIntrinsics struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
	K1     float64 `json:"k1"`
	K2     float64 `json:"k2"`
	P1     float64 `json:"p1"`
	P2     float64 `json:"p2"`
}

// UndistortMap is a precomputed pixel-to-pixel remap. For each rectified
// output pixel it stores the flat index of the distorted source pixel, or -1
// when the source falls outside the sensor. Timestamp maps are remapped with
// nearest-neighbour lookups: interpolating timestamps would fabricate event
// times that never occurred.
type UndistortMap struct {
	Width  int
	Height int
	srcIdx []int32 // len = Width * Height; -1 = unmapped
}

// NewUndistortMap precomputes the remap for the given intrinsics. Each
// rectified pixel is projected through the distortion model to find the raw
// pixel it samples.
func NewUndistortMap(intri PinholeIntrinsics) *UndistortMap {
	m := &UndistortMap{
		Width:  intri.Width,
		Height: intri.Height,
		srcIdx: make([]int32, intri.Width*intri.Height),
	}
	for v := 0; v < intri.Height; v++ {
		for u := 0; u < intri.Width; u++ {
			// Normalised rectified coordinates.
			x := (float64(u) - intri.Cx) / intri.Fx
			y := (float64(v) - intri.Cy) / intri.Fy

			r2 := x*x + y*y
			radial := 1 + intri.K1*r2 + intri.K2*r2*r2
			xd := x*radial + 2*intri.P1*x*y + intri.P2*(r2+2*x*x)
			yd := y*radial + intri.P1*(r2+2*y*y) + 2*intri.P2*x*y

			su := int(math.Round(xd*intri.Fx + intri.Cx))
			sv := int(math.Round(yd*intri.Fy + intri.Cy))

			i := v*intri.Width + u
			if su < 0 || su >= intri.Width || sv < 0 || sv >= intri.Height {
				m.srcIdx[i] = -1
				continue
			}
			m.srcIdx[i] = int32(sv*intri.Width + su)
		}
	}
	return m
}

// IdentityUndistortMap returns a remap that leaves every pixel in place, for
// streams without calibration.
func IdentityUndistortMap(width, height int) *UndistortMap {
	m := &UndistortMap{
		Width:  width,
		Height: height,
		srcIdx: make([]int32, width*height),
	}
	for i := range m.srcIdx {
		m.srcIdx[i] = int32(i)
	}
	return m
}

// ApplyScalar remaps a scalar map. Unmapped pixels are left at zero.
func (m *UndistortMap) ApplyScalar(src *ScalarMap) *ScalarMap {
	out := NewScalarMap(src.Width, src.Height)
	for i, s := range m.srcIdx {
		if s >= 0 {
			out.Values[i] = src.Values[s]
		}
	}
	return out
}

// ApplyPolarity remaps a polarity map. Unmapped pixels stay unset.
func (m *UndistortMap) ApplyPolarity(src *PolarityMap) *PolarityMap {
	out := NewPolarityMap(src.Width, src.Height)
	for i, s := range m.srcIdx {
		if s >= 0 {
			out.Values[i] = src.Values[s]
		}
	}
	return out
}

// ApplyGray remaps an 8-bit grayscale image. Unmapped pixels stay black.
func (m *UndistortMap) ApplyGray(src *image.Gray) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for v := 0; v < m.Height; v++ {
		for u := 0; u < m.Width; u++ {
			s := m.srcIdx[v*m.Width+u]
			if s < 0 {
				continue
			}
			sx, sy := int(s)%m.Width, int(s)/m.Width
			out.SetGray(u, v, src.GrayAt(sx, sy))
		}
	}
	return out
}

// ApplyRGBA remaps an RGBA image. Unmapped pixels stay black.
func (m *UndistortMap) ApplyRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for v := 0; v < m.Height; v++ {
		for u := 0; u < m.Width; u++ {
			s := m.srcIdx[v*m.Width+u]
			if s < 0 {
				continue
			}
			sx, sy := int(s)%m.Width, int(s)/m.Width
			out.SetRGBA(u, v, src.RGBAAt(sx, sy))
		}
	}
	return out
}
