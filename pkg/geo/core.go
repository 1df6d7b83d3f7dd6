// pkg/geo/core.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package geo provides the geometric primitives the planning engine is
// built on: 3D positions on a reference globe, Cartesian points, oriented
// boxes and cubes, cubic grid subdivision, and segment/sphere/cylinder
// intersection tests.
package geo

import (
	gomath "math"

	"golang.org/x/exp/constraints"
)

// Degrees converts an angle expressed in radians to degrees.
func Degrees(r float32) float32 {
	return r * 180 / gomath.Pi
}

// Radians converts an angle expressed in degrees to radians.
func Radians(d float32) float32 {
	return d / 180 * gomath.Pi
}

func Sin(a float32) float32  { return float32(gomath.Sin(float64(a))) }
func Cos(a float32) float32  { return float32(gomath.Cos(float64(a))) }
func Tan(a float32) float32  { return float32(gomath.Tan(float64(a))) }
func Sqrt(a float32) float32 { return float32(gomath.Sqrt(float64(a))) }

func Atan2(y, x float32) float32 {
	return float32(gomath.Atan2(float64(y), float64(x)))
}

func SafeAsin(a float32) float32 {
	return float32(gomath.Asin(float64(Clamp(a, -1, 1))))
}

func Floor(v float32) float32 { return float32(gomath.Floor(float64(v))) }
func Ceil(v float32) float32  { return float32(gomath.Ceil(float64(v))) }

func Abs[V constraints.Integer | constraints.Float](x V) V {
	if x < 0 {
		return -x
	}
	return x
}

func Sign(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func Sqr[V constraints.Integer | constraints.Float](v V) V { return v * v }

func Clamp[T constraints.Ordered](x T, low T, high T) T {
	if x < low {
		return low
	} else if x > high {
		return high
	}
	return x
}

func Lerp(x, a, b float32) float32 {
	return (1-x)*a + x*b
}
