package reminder

import (
	"fmt"
	"strings"
)

// Unit is the step used to derive a due date from a start date.
type Unit string

const (
	UnitDays   Unit = "дни"
	UnitWeeks  Unit = "недели"
	UnitMonths Unit = "месяцы"
)

// MaxQuantity bounds the quantity accepted for a unit.
const MaxQuantity = 10000

// Units lists the units in the order the keyboard shows them.
var Units = []Unit{UnitDays, UnitMonths, UnitWeeks}

var unitAliases = map[string]Unit{
	"дни":     UnitDays,
	"дней":    UnitDays,
	"days":    UnitDays,
	"недели":  UnitWeeks,
	"недель":  UnitWeeks,
	"weeks":   UnitWeeks,
	"месяцы":  UnitMonths,
	"месяцев": UnitMonths,
	"months":  UnitMonths,
}

// ParseUnit matches s case-insensitively against the known unit labels.
func ParseUnit(s string) (Unit, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if u, ok := unitAliases[key]; ok {
		return u, nil
	}
	return "", &ValidationError{Field: "unit", Input: s}
}

// Label returns the capitalized label used on keyboard buttons.
func (u Unit) Label() string {
	switch u {
	case UnitDays:
		return "Дни"
	case UnitWeeks:
		return "Недели"
	case UnitMonths:
		return "Месяцы"
	}
	return string(u)
}

// DueDate computes start + quantity*unit.
func DueDate(start Date, unit Unit, quantity int) (Date, error) {
	if quantity < 0 || quantity > MaxQuantity {
		return Date{}, &ValidationError{Field: "quantity", Input: fmt.Sprint(quantity)}
	}
	switch unit {
	case UnitDays:
		return start.AddDays(quantity), nil
	case UnitWeeks:
		return start.AddDays(7 * quantity), nil
	case UnitMonths:
		return start.AddMonths(quantity), nil
	}
	return Date{}, &ValidationError{Field: "unit", Input: string(unit)}
}
