/*
Copyright © 2019 the WQNet authors.
This file is part of WQNet.

WQNet is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WQNet is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WQNet.  If not, see <http://www.gnu.org/licenses/>.
*/

package wqnet

import (
	"fmt"
	"math"

	"github.com/ctessum/unit"
)

// Unit conversion constants.
const (
	// LperFT3 is liters per cubic foot.
	LperFT3 = 28.317
	// MperFT is meters per foot.
	MperFT = 0.3048
)

// FieldType identifies a physical quantity whose values are stored
// internally in one unit system and reported in another.
type FieldType int

// Registered field types.
const (
	Elevation FieldType = iota
	Length
	Diameter
	Flow
	Volume
	Quality
	Time
	BulkReactionRate
	TankReactionRate
)

var fieldNames = map[FieldType]string{
	Elevation:        "Elevation",
	Length:           "Length",
	Diameter:         "Diameter",
	Flow:             "Flow",
	Volume:           "Volume",
	Quality:          "Quality",
	Time:             "Time",
	BulkReactionRate: "BulkReactionRate",
	TankReactionRate: "TankReactionRate",
}

func (f FieldType) String() string {
	if s, ok := fieldNames[f]; ok {
		return s
	}
	return fmt.Sprintf("FieldType(%d)", int(f))
}

// UnknownFieldError is returned when a conversion is requested for a
// field that has not been registered. Callers may recover from it,
// for example by treating the field as absent.
type UnknownFieldError struct {
	Field FieldType
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("wqnet: unknown field type %v", e.Field)
}

type field struct {
	// ucf converts internal values to reporting units:
	// reported = internal * ucf.
	ucf float64

	// siPerInternal converts internal values to SI units, for fields
	// that have SI dimensions.
	siPerInternal float64
	dims          unit.Dimensions
}

// Fields holds the unit conversion factors for a network.
// Internally, lengths are stored in feet, volumes in cubic feet,
// flows in cubic feet per second, times in seconds, and chemical
// concentrations in mass per cubic foot.
type Fields struct {
	fields map[FieldType]field
}

// NewFields creates the unit conversion registry for the given
// analysis options.
func NewFields(o *Options) *Fields {
	f := &Fields{fields: make(map[FieldType]field)}

	elev := 1.
	if o.Units == SI {
		elev = MperFT
	}
	const m3PerFt3 = MperFT * MperFT * MperFT
	f.fields[Elevation] = field{ucf: elev, siPerInternal: MperFT, dims: unit.Meter}
	f.fields[Length] = field{ucf: elev, siPerInternal: MperFT, dims: unit.Meter}
	f.fields[Diameter] = field{ucf: elev, siPerInternal: MperFT, dims: unit.Meter}
	f.fields[Volume] = field{ucf: elev * elev * elev, siPerInternal: m3PerFt3, dims: unit.Meter3}
	f.fields[Flow] = field{ucf: elev * elev * elev, siPerInternal: m3PerFt3, dims: unit.Meter3PerSecond}
	f.fields[Time] = field{ucf: 1, siPerInternal: 1, dims: unit.Second}

	switch o.Quality {
	case Chem:
		// mass/ft³ to mass/L. Concentrations are taken to be mg/L
		// when converted to SI.
		f.fields[Quality] = field{ucf: LperFT3, siPerInternal: 1e-3 / LperFT3, dims: unit.KilogramPerMeter3}
	default:
		// Age is in hours and trace is in percent.
		f.fields[Quality] = field{ucf: 1, dims: unit.Dimless}
	}
	f.fields[BulkReactionRate] = field{ucf: reactionUcf(o.BulkOrder), dims: unit.Dimless}
	f.fields[TankReactionRate] = field{ucf: reactionUcf(o.TankOrder), dims: unit.Dimless}
	return f
}

// reactionUcf returns the factor that converts a reaction coefficient
// of the given order from liter-based to cubic-foot-based units.
func reactionUcf(order float64) float64 {
	if order < 0 {
		order = 0
	}
	if order == 1 {
		return 1
	}
	return 1 / math.Pow(LperFT3, order-1)
}

// Units returns the factor that converts internal values of field t
// to reporting units. It returns an *UnknownFieldError if t has not
// been registered.
func (f *Fields) Units(t FieldType) (float64, error) {
	v, ok := f.fields[t]
	if !ok {
		return 0, &UnknownFieldError{Field: t}
	}
	return v.ucf, nil
}

// MustUnits is like Units but panics if the field is unknown.
func (f *Fields) MustUnits(t FieldType) float64 {
	v, err := f.Units(t)
	if err != nil {
		panic(err)
	}
	return v
}

// ToInternal converts a dimensioned value to the internal units of
// field t, returning an error if v has the wrong dimensions.
func (f *Fields) ToInternal(t FieldType, v *unit.Unit) (float64, error) {
	fld, ok := f.fields[t]
	if !ok {
		return 0, &UnknownFieldError{Field: t}
	}
	if err := v.Check(fld.dims); err != nil {
		return 0, fmt.Errorf("wqnet: converting %v: %v", t, err)
	}
	if fld.siPerInternal == 0 {
		return v.Value(), nil
	}
	return v.Value() / fld.siPerInternal, nil
}

// FromInternal converts an internal value of field t to a
// dimensioned SI value.
func (f *Fields) FromInternal(t FieldType, v float64) (*unit.Unit, error) {
	fld, ok := f.fields[t]
	if !ok {
		return nil, &UnknownFieldError{Field: t}
	}
	if fld.siPerInternal == 0 {
		return unit.New(v, fld.dims), nil
	}
	return unit.New(v*fld.siPerInternal, fld.dims), nil
}
