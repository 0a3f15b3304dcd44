// Package units converts ingredient quantities between the units a kitchen
// actually writes down (kg, ltr, pcs, ...) and the base units all stock
// arithmetic is carried out in. Every conversion rounds to two decimals at the
// point of conversion so repeated multiply/divide chains never accumulate
// floating-point tails.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Base units per measurement family. All comparisons and deductions happen in
// these units; storage and recipe units are converted in and out of them.
const (
	Gram       = "gm"
	Milliliter = "ml"
	Pieces     = "pieces"
)

// conversion maps a recognized unit alias to its base unit and the factor that
// takes a quantity into that base unit.
type conversion struct {
	base   string
	factor float64
}

var aliases = map[string]conversion{
	// Mass, large
	"kg": {Gram, 1000}, "kgs": {Gram, 1000}, "kilogram": {Gram, 1000}, "kilograms": {Gram, 1000},
	// Mass, base
	"gm": {Gram, 1}, "g": {Gram, 1}, "gms": {Gram, 1}, "gram": {Gram, 1}, "grams": {Gram, 1},
	// Volume, large
	"ltr": {Milliliter, 1000}, "l": {Milliliter, 1000}, "ltrs": {Milliliter, 1000},
	"litre": {Milliliter, 1000}, "liter": {Milliliter, 1000}, "litres": {Milliliter, 1000}, "liters": {Milliliter, 1000},
	// Volume, base
	"ml": {Milliliter, 1}, "millilitre": {Milliliter, 1}, "milliliter": {Milliliter, 1},
	"millilitres": {Milliliter, 1}, "milliliters": {Milliliter, 1},
	// Count
	"pieces": {Pieces, 1}, "piece": {Pieces, 1}, "pcs": {Pieces, 1}, "pc": {Pieces, 1}, "nos": {Pieces, 1}, "no": {Pieces, 1},
}

// largeUnits are the units rendered in their base unit when the quantity drops
// below one, e.g. 0.7 kg is shown as "700 gm".
var largeUnits = map[string]string{
	"kg": Gram, "kgs": Gram, "kilogram": Gram, "kilograms": Gram,
	"ltr": Milliliter, "l": Milliliter, "ltrs": Milliliter,
	"litre": Milliliter, "liter": Milliliter, "litres": Milliliter, "liters": Milliliter,
}

// Canonical lower-cases and trims a unit string. Unit matching is case- and
// whitespace-insensitive throughout.
func Canonical(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// Known reports whether the unit string is a recognized alias of a supported
// unit family.
func Known(unit string) bool {
	_, ok := aliases[Canonical(unit)]
	return ok
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Round6 rounds to six decimal places. Recipe-unit products are trimmed with
// this before conversion so binary float noise disappears without losing
// sub-0.01 quantities like 0.125 kg; two-decimal rounding happens only after
// conversion into base units.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Normalize converts a quantity into its base unit:
//
//	1.5 kg  -> (1500, "gm")
//	8 ltr   -> (8000, "ml")
//	100 gm  -> (100, "gm")
//	50 pcs  -> (50, "pieces")
//
// An unrecognized unit passes through unchanged as its own base unit. That is
// deliberate: deduction must not fail just because a unit was misspelled, so
// the mismatch surfaces at the comparison step instead. Callers should check
// Known and log a warning for such units.
func Normalize(quantity float64, unit string) (float64, string) {
	u := Canonical(unit)
	if conv, ok := aliases[u]; ok {
		return Round2(quantity * conv.factor), conv.base
	}
	return Round2(quantity), u
}

// Denormalize converts a base-unit quantity back into the target unit. When
// the target resolves to the same granularity as the base unit the magnitude
// is unchanged. Unconvertible pairs pass through rounded.
func Denormalize(quantity float64, baseUnit, targetUnit string) float64 {
	base := Canonical(baseUnit)
	target := Canonical(targetUnit)

	if base == target {
		return Round2(quantity)
	}
	if conv, ok := aliases[target]; ok && conv.base == base && conv.factor != 1 {
		return Round2(quantity / conv.factor)
	}
	return Round2(quantity)
}

// FormatForDisplay renders a quantity for humans. Quantities below one of a
// large unit are shown in the base unit with no decimals ("700 gm" rather than
// "0.7 kg"); everything else is shown in the given unit as-is.
func FormatForDisplay(quantity float64, unit string) string {
	u := Canonical(unit)
	if base, ok := largeUnits[u]; ok {
		if quantity < 1 {
			return fmt.Sprintf("%d %s", int(math.Round(quantity*1000)), base)
		}
		// Large units always display under their family's short name.
		if base == Gram {
			return formatQty(quantity) + " kg"
		}
		return formatQty(quantity) + " ltr"
	}
	return formatQty(quantity) + " " + u
}

// formatQty renders a float without trailing zeros (1.5 -> "1.5", 8 -> "8").
func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
