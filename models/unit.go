package models

import (
	"fmt"
	"sync"
)

// Unit is a base measurement unit. The zero value is UnitNone.
type Unit int

const (
	UnitNone Unit = iota
	UnitWatt
	UnitJoule
	UnitVolt
	UnitAmpere
	UnitSecond
	UnitByte
	UnitHertz
	UnitCelsius
	UnitPercent
	unitCustomSentinel // internal marker; CustomUnit values compare >= this
)

func (u Unit) String() string {
	switch u {
	case UnitNone:
		return ""
	case UnitWatt:
		return "W"
	case UnitJoule:
		return "J"
	case UnitVolt:
		return "V"
	case UnitAmpere:
		return "A"
	case UnitSecond:
		return "s"
	case UnitByte:
		return "B"
	case UnitHertz:
		return "Hz"
	case UnitCelsius:
		return "°C"
	case UnitPercent:
		return "%"
	default:
		customUnitMu.Lock()
		name, ok := customUnitNames[u]
		customUnitMu.Unlock()
		if ok {
			return name
		}
		return "unit(?)"
	}
}

var (
	customUnitMu    sync.Mutex
	customUnitNames = map[Unit]string{}
	customUnitByName = map[string]Unit{}
	customUnitNext  = unitCustomSentinel + 1
)

// CustomUnit registers (or looks up) a named unit outside the builtin set.
// Repeated calls with the same name return the same Unit value.
func CustomUnit(name string) Unit {
	customUnitMu.Lock()
	defer customUnitMu.Unlock()
	if u, ok := customUnitByName[name]; ok {
		return u
	}
	u := customUnitNext
	customUnitNext++
	customUnitNames[u] = name
	customUnitByName[name] = u
	return u
}

// Prefix is a decimal SI prefix applied to a Unit.
type Prefix int

const (
	PrefixNone Prefix = iota
	PrefixNano
	PrefixMicro
	PrefixMilli
	PrefixKilo
	PrefixMega
	PrefixGiga
)

func (p Prefix) String() string {
	switch p {
	case PrefixNano:
		return "n"
	case PrefixMicro:
		return "µ"
	case PrefixMilli:
		return "m"
	case PrefixKilo:
		return "k"
	case PrefixMega:
		return "M"
	case PrefixGiga:
		return "G"
	default:
		return ""
	}
}

// PrefixedUnit pairs a base Unit with a decimal Prefix, e.g. milliwatt.
type PrefixedUnit struct {
	Base   Unit
	Prefix Prefix
}

func (pu PrefixedUnit) String() string {
	return fmt.Sprintf("%s%s", pu.Prefix, pu.Base)
}

// WithPrefix is a convenience constructor: models.UnitWatt.WithPrefix(models.PrefixMilli).
func (u Unit) WithPrefix(p Prefix) PrefixedUnit { return PrefixedUnit{Base: u, Prefix: p} }
