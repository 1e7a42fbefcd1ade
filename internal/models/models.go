package models

import "time"

// RawWeatherPayload is the OpenWeatherMap "current weather" response
type RawWeatherPayload struct {
	Coord      Coord       `json:"coord"`
	Weather    []Condition `json:"weather"`
	Base       string      `json:"base"`
	Main       *Main       `json:"main"`
	Visibility int         `json:"visibility"`
	Wind       Wind        `json:"wind"`
	Clouds     Clouds      `json:"clouds"`
	Dt         int64       `json:"dt"`
	Sys        Sys         `json:"sys"`
	Timezone   int         `json:"timezone"`
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Cod        int         `json:"cod"`
}

type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Main struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
}

type Wind struct {
	Speed float64 `json:"speed"`
	Deg   int     `json:"deg"`
}

type Clouds struct {
	All int `json:"all"`
}

type Sys struct {
	Type    int    `json:"type"`
	ID      int64  `json:"id"`
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// WeatherRecord is the app's view of one successful lookup.
// Temperatures are in the unit system the request was made with.
type WeatherRecord struct {
	ID          string  `json:"id"`
	CityName    string  `json:"cityName"`
	Country     string  `json:"country"`
	Temperature int     `json:"temperature"`
	Description string  `json:"description"`
	MinTemp     int     `json:"minTemp"`
	MaxTemp     int     `json:"maxTemp"`
	WindSpeed   float64 `json:"windSpeed"`
	Humidity    int     `json:"humidity"`
	Icon        string  `json:"icon"`
	Units       string  `json:"units"`
	Timestamp   int64   `json:"timestamp"` // unix millis, when this app saw the data
}

// HistoryEntry is one past search. SearchedAt is unix millis.
type HistoryEntry struct {
	ID         string `json:"id"`
	CityName   string `json:"cityName"`
	Country    string `json:"country"`
	SearchedAt int64  `json:"searchedAt"`
}

// SearchedTime returns SearchedAt as a time.Time
func (e HistoryEntry) SearchedTime() time.Time {
	return time.UnixMilli(e.SearchedAt)
}
