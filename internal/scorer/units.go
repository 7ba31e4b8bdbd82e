package scorer

import "strings"

// dimension groups units that convert into one another.
type dimension string

const (
	dimCount  dimension = "count"
	dimLength dimension = "length"
	dimMass   dimension = "mass"
	dimVolume dimension = "volume"
	dimSet    dimension = "set"
	dimPair   dimension = "pair"
	dimArea   dimension = "area"
)

var unitDimensions = map[string]dimension{
	"pcs": dimCount, "pc": dimCount, "piece": dimCount, "pieces": dimCount,
	"ea": dimCount, "each": dimCount, "unit": dimCount, "units": dimCount,
	"no": dimCount, "nos": dimCount, "qty": dimCount, "個": dimCount,
	"本": dimCount, "枚": dimCount, "台": dimCount, "点": dimCount,

	"mm": dimLength, "cm": dimLength, "m": dimLength, "meter": dimLength,
	"meters": dimLength, "metre": dimLength, "metres": dimLength, "km": dimLength,
	"in": dimLength, "inch": dimLength, "inches": dimLength, "ft": dimLength,
	"feet": dimLength,

	"mg": dimMass, "g": dimMass, "kg": dimMass, "t": dimMass, "ton": dimMass,
	"lb": dimMass, "lbs": dimMass, "oz": dimMass,

	"ml": dimVolume, "l": dimVolume, "liter": dimVolume, "liters": dimVolume,
	"litre": dimVolume, "litres": dimVolume, "gal": dimVolume, "cc": dimVolume,

	"set": dimSet, "sets": dimSet, "kit": dimSet, "kits": dimSet, "式": dimSet,

	"pair": dimPair, "pairs": dimPair, "pr": dimPair, "組": dimPair,

	"m2": dimArea, "sqm": dimArea, "ft2": dimArea, "sqft": dimArea,
}

// NormalizeUnit lower-cases a unit and strips spaces and trailing periods.
func NormalizeUnit(u string) string {
	u = strings.ToLower(foldText(strings.TrimSpace(u)))
	u = strings.ReplaceAll(u, " ", "")
	return strings.TrimRight(u, ".")
}

// UnitsCompatible reports whether two units are equal after normalization or
// belong to the same convertible dimension.
func UnitsCompatible(a, b string) bool {
	a, b = NormalizeUnit(a), NormalizeUnit(b)
	if a == b {
		return true
	}
	da, okA := unitDimensions[a]
	db, okB := unitDimensions[b]
	return okA && okB && da == db
}
