package api

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unit systems accepted by the provider's units parameter
const (
	UnitsMetric   = "metric"
	UnitsImperial = "imperial"
)

// Unit is a display temperature unit
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// UnitForSystem returns the temperature unit a unit system reports in
func UnitForSystem(system string) Unit {
	if system == UnitsImperial {
		return Fahrenheit
	}
	return Celsius
}

// Toggle returns the other unit
func (u Unit) Toggle() Unit {
	if u == Fahrenheit {
		return Celsius
	}
	return Fahrenheit
}

func (u Unit) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

func CelsiusToFahrenheit(c float64) int {
	return roundHalfUp(c*9/5 + 32)
}

func FahrenheitToCelsius(f float64) int {
	return roundHalfUp((f - 32) * 5 / 9)
}

// ConvertTemperature converts a rounded temperature between units
func ConvertTemperature(temp int, from, to Unit) int {
	if from == to {
		return temp
	}
	switch {
	case from == Celsius && to == Fahrenheit:
		return CelsiusToFahrenheit(float64(temp))
	case from == Fahrenheit && to == Celsius:
		return FahrenheitToCelsius(float64(temp))
	}
	return temp
}

func FormatTemperature(temp int, unit Unit) string {
	return strconv.Itoa(temp) + unit.Symbol()
}

// FormatWindSpeed labels speed with the unit the provider used for system
func FormatWindSpeed(speed float64, system string) string {
	unit := "m/s"
	if system == UnitsImperial {
		unit = "mph"
	}
	return fmt.Sprintf("%s %s", strconv.FormatFloat(speed, 'f', -1, 64), unit)
}

// IconURL builds the provider's icon image URL for a condition icon code
func IconURL(iconBaseURL, iconCode string) string {
	return fmt.Sprintf("%s/%s@2x.png", strings.TrimRight(iconBaseURL, "/"), iconCode)
}

// CapitalizeWords upper-cases the first letter of each space-separated word
// and lower-cases the rest
func CapitalizeWords(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
