package api

import "testing"

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		temp     int
		from, to Unit
		want     int
	}{
		{"freezing C to F", 0, Celsius, Fahrenheit, 32},
		{"room C to F", 25, Celsius, Fahrenheit, 77},
		{"boiling C to F", 100, Celsius, Fahrenheit, 212},
		{"freezing F to C", 32, Fahrenheit, Celsius, 0},
		{"boiling F to C", 212, Fahrenheit, Celsius, 100},
		{"negative C to F", -40, Celsius, Fahrenheit, -40},
		{"rounds F to C", 70, Fahrenheit, Celsius, 21},
		{"same unit C", 17, Celsius, Celsius, 17},
		{"same unit F", -3, Fahrenheit, Fahrenheit, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertTemperature(tt.temp, tt.from, tt.to); got != tt.want {
				t.Errorf("ConvertTemperature(%d, %s, %s) = %d, want %d", tt.temp, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestUnitForSystem(t *testing.T) {
	if got := UnitForSystem(UnitsMetric); got != Celsius {
		t.Errorf("UnitForSystem(metric) = %v, want C", got)
	}
	if got := UnitForSystem(UnitsImperial); got != Fahrenheit {
		t.Errorf("UnitForSystem(imperial) = %v, want F", got)
	}
}

func TestUnitToggle(t *testing.T) {
	if Celsius.Toggle() != Fahrenheit || Fahrenheit.Toggle() != Celsius {
		t.Error("Toggle() should flip between C and F")
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"celsius", FormatTemperature(25, Celsius), "25°C"},
		{"fahrenheit", FormatTemperature(77, Fahrenheit), "77°F"},
		{"negative", FormatTemperature(-5, Celsius), "-5°C"},
		{"wind metric", FormatWindSpeed(3.5, UnitsMetric), "3.5 m/s"},
		{"wind imperial", FormatWindSpeed(10, UnitsImperial), "10 mph"},
		{"icon", IconURL(DefaultIconBaseURL, "01d"), "https://openweathermap.org/img/wn/01d@2x.png"},
		{"icon trailing slash", IconURL("http://icons/", "10n"), "http://icons/10n@2x.png"},
		{"capitalize", CapitalizeWords("clear sky"), "Clear Sky"},
		{"capitalize mixed", CapitalizeWords("lIGHT rain"), "Light Rain"},
		{"capitalize unicode", CapitalizeWords("école"), "École"},
		{"capitalize empty", CapitalizeWords(""), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
