package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrBadCoordinate = errors.New("malformed coordinate")

// Coordinate is a validated [lat, lng] pair.
type Coordinate [2]float64

func (c Coordinate) Lat() float64 { return c[0] }
func (c Coordinate) Lng() float64 { return c[1] }

// ParseCoordinate parses the "lat,lng" text stored with assets.
// Surrounding brackets and spaces are tolerated; anything but exactly two
// floats inside the valid latitude/longitude ranges is rejected.
func ParseCoordinate(s string) (Coordinate, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Coordinate{}, ErrBadCoordinate
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, ErrBadCoordinate
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, ErrBadCoordinate
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinate{}, ErrBadCoordinate
	}
	return Coordinate{lat, lng}, nil
}
