// Package vec3 provides the small 3-vector and unit-quaternion arithmetic
// shared across mdcore: molecule poses, body-to-lab rotation, and the
// Rodrigues rotation update the Leapfrog integrator applies to angular
// momentum. Method style (small value struct, cheap by-value ops) follows
// geom.Vec/PluckerVec in the teacher, widened to float64 per spec.md §4.4
// ("all arithmetic is 64-bit floating point") since the teacher's Vec is a
// float32 type built for cosmological grids, not dynamics.
package vec3

import "math"

// V is a 3-component vector of float64.
type V [3]float64

// Add returns a+b.
func Add(a, b V) V { return V{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

// Sub returns a-b.
func Sub(a, b V) V { return V{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

// Scale returns a scaled by s.
func Scale(a V, s float64) V { return V{a[0] * s, a[1] * s, a[2] * s} }

// Dot returns the dot product of a and b.
func Dot(a, b V) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// Cross returns the cross product a x b.
func Cross(a, b V) V {
	return V{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Norm returns the Euclidean length of a.
func Norm(a V) float64 { return math.Sqrt(Dot(a, a)) }

// Norm2 returns the squared Euclidean length of a, avoiding the sqrt.
func Norm2(a V) float64 { return Dot(a, a) }

// Quat is a unit quaternion (w, x, y, z) representing a molecule's
// orientation. Invariant (spec.md §3): ||q|| = 1 within 1e-12 after each
// renormalization step.
type Quat struct {
	W, X, Y, Z float64
}

// Identity returns the no-rotation quaternion.
func Identity() Quat { return Quat{W: 1} }

// Norm returns the quaternion's Euclidean norm.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

// Normalized returns q scaled to unit norm. Called after every orientation
// update so the ||q||=1 invariant from spec.md §3 holds within tolerance.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n == 0 {
		return Identity()
	}
	inv := 1 / n
	return Quat{q.W * inv, q.X * inv, q.Y * inv, q.Z * inv}
}

// Conj returns the conjugate of q.
func (q Quat) Conj() Quat { return Quat{q.W, -q.X, -q.Y, -q.Z} }

// Mul returns the Hamilton product q*r.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Rotate applies q's rotation to the body-frame vector d, returning the
// lab-frame vector, via q*[0,d]*conj(q).
func (q Quat) Rotate(d V) V {
	p := Quat{0, d[0], d[1], d[2]}
	r := q.Mul(p).Mul(q.Conj())
	return V{r.X, r.Y, r.Z}
}

// RotationMatrix returns the 3x3 rotation matrix R(q) implied by q, in
// row-major order. Used to batch-rotate orientation vectors (dipole/
// quadrupole e_body) without rebuilding a Quat product per site.
func (q Quat) RotationMatrix() [3][3]float64 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return [3][3]float64{
		{1 - 2*(yy+zz), 2 * (xy - wz), 2 * (xz + wy)},
		{2 * (xy + wz), 1 - 2*(xx+zz), 2 * (yz - wx)},
		{2 * (xz - wy), 2 * (yz + wx), 1 - 2*(xx+yy)},
	}
}

// RotateByMatrix applies a precomputed rotation matrix to d. Used per-site
// in ParticleStore.load_from so the matrix is built once per molecule and
// reused across all of that molecule's sites.
func RotateByMatrix(m [3][3]float64, d V) V {
	return V{
		m[0][0]*d[0] + m[0][1]*d[1] + m[0][2]*d[2],
		m[1][0]*d[0] + m[1][1]*d[1] + m[1][2]*d[2],
		m[2][0]*d[0] + m[2][1]*d[1] + m[2][2]*d[2],
	}
}

// IntegrateAngularVelocity advances a unit quaternion by one Rodrigues-
// formula rotation step given a body-frame angular velocity omega and a
// time step dt, as spec.md §4.7 calls for in eventForcesCalculated. The
// rotation axis/angle (Rodrigues parameters) are derived from omega*dt and
// composed onto q; the result is renormalized before return.
func IntegrateAngularVelocity(q Quat, omega V, dt float64) Quat {
	theta := Norm(omega) * dt
	if theta == 0 {
		return q
	}
	axis := Scale(omega, 1/Norm(omega))
	half := theta / 2
	s := math.Sin(half)
	dq := Quat{W: math.Cos(half), X: axis[0] * s, Y: axis[1] * s, Z: axis[2] * s}
	return q.Mul(dq).Normalized()
}

// WrapDistance returns the minimum-image displacement of a-b across a
// periodic domain of width L along one axis, matching the teacher's
// Header.wrapDist (gotetra's geom.go) generalized from a single positional
// difference to the signed minimum-image convention dynamics needs (the
// teacher only ever needs the magnitude, for nearest-image binning; the
// force kernel needs the signed vector too).
func WrapDistance(a, b, length float64) float64 {
	d := a - b
	if d > length/2 {
		d -= length
	} else if d < -length/2 {
		d += length
	}
	return d
}

// WrapDisplacement applies WrapDistance componentwise for a periodic cubic
// domain of the given side lengths.
func WrapDisplacement(a, b V, lengths V) V {
	return V{
		WrapDistance(a[0], b[0], lengths[0]),
		WrapDistance(a[1], b[1], lengths[1]),
		WrapDistance(a[2], b[2], lengths[2]),
	}
}
