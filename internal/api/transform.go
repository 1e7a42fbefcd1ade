package api

import (
	"fmt"
	"math"
	"time"

	"cityweather/internal/models"
)

// Transform converts a provider payload into a WeatherRecord, stamped with now.
func Transform(raw *models.RawWeatherPayload, units string, now time.Time) (*models.WeatherRecord, error) {
	if raw == nil {
		return nil, &MalformedResponseError{Reason: "empty payload"}
	}
	if len(raw.Weather) == 0 {
		return nil, &MalformedResponseError{Reason: "payload has no weather conditions"}
	}
	if raw.Name == "" {
		return nil, &MalformedResponseError{Reason: "payload has no city name"}
	}
	if raw.Main == nil {
		return nil, &MalformedResponseError{Reason: "payload has no main readings"}
	}

	condition := raw.Weather[0]
	millis := now.UnixMilli()

	return &models.WeatherRecord{
		ID:          fmt.Sprintf("%d-%d", raw.ID, millis),
		CityName:    raw.Name,
		Country:     raw.Sys.Country,
		Temperature: roundHalfUp(raw.Main.Temp),
		Description: condition.Description,
		MinTemp:     roundHalfUp(raw.Main.TempMin),
		MaxTemp:     roundHalfUp(raw.Main.TempMax),
		WindSpeed:   raw.Wind.Speed,
		Humidity:    raw.Main.Humidity,
		Icon:        condition.Icon,
		Units:       units,
		Timestamp:   millis,
	}, nil
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
