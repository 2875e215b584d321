package model

import (
	"github.com/rotisserie/eris"
)

// GeoPoint is an immutable WGS84 coordinate pair in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BBox is a geographic bounding box in decimal degrees.
type BBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat" mapstructure:"min_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon" mapstructure:"min_lon"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat" mapstructure:"max_lat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon" mapstructure:"max_lon"`
}

// Validate checks that the point lies inside the valid WGS84 range.
func (p GeoPoint) Validate() error {
	// The negated comparisons also reject NaN.
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return eris.Errorf("model: latitude %.4f outside [-90, 90]", p.Lat)
	}
	if !(p.Lon >= -180 && p.Lon <= 180) {
		return eris.Errorf("model: longitude %.4f outside [-180, 180]", p.Lon)
	}
	return nil
}

// Contains reports whether the point lies inside the box (edges inclusive).
func (b BBox) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Validate checks box ordering and that both corners are valid coordinates.
func (b BBox) Validate() error {
	if err := (GeoPoint{Lat: b.MinLat, Lon: b.MinLon}).Validate(); err != nil {
		return err
	}
	if err := (GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}).Validate(); err != nil {
		return err
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return eris.New("model: bounding box min corner exceeds max corner")
	}
	return nil
}
