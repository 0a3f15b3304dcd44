package menu

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsedRequirement is one entry of a "Name(quantity unit)" ingredient list,
// before it has been resolved against the stock ledger.
type ParsedRequirement struct {
	Name     string
	Quantity float64
	Unit     string
}

// ParseRequirementList parses the comma-separated recipe syntax used by menu
// imports: "Butter(200 gm), Tikki(1 piece), Tomato(100 gm)". A missing unit
// defaults to pieces. Malformed entries are reported as strings and skipped;
// one bad entry never sinks the rest of the list.
func ParseRequirementList(list string) ([]ParsedRequirement, []string) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var parsed []ParsedRequirement
	var errs []string

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		open := strings.Index(entry, "(")
		end := strings.LastIndex(entry, ")")
		if open <= 0 || end < open {
			errs = append(errs, fmt.Sprintf("invalid ingredient format %q, use \"name(quantity unit)\"", entry))
			continue
		}

		name := strings.TrimSpace(entry[:open])
		qtyUnit := strings.TrimSpace(entry[open+1 : end])

		parts := strings.Fields(qtyUnit)
		if len(parts) == 0 {
			errs = append(errs, fmt.Sprintf("missing quantity in %q", entry))
			continue
		}

		qty, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid quantity in %q: %v", entry, err))
			continue
		}

		unit := "pieces"
		if len(parts) > 1 {
			unit = strings.Join(parts[1:], " ")
		}

		parsed = append(parsed, ParsedRequirement{Name: name, Quantity: qty, Unit: unit})
	}

	return parsed, errs
}
