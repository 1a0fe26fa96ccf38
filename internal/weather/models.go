package weather

import "time"

// Brief is the current weather at one airport. Fields are nil when the
// provider did not answer; a Brief is never an error.
type Brief struct {
	Airport   string    `json:"airport"`
	TempC     *float64  `json:"temp_c"`
	WindKph   *float64  `json:"wind_kph"`
	Time      string    `json:"time,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
}

// Available reports whether the brief carries any data
func (b *Brief) Available() bool {
	return b != nil && (b.TempC != nil || b.WindKph != nil)
}

// openMeteoResponse is the subset of the forecast response we read.
// Open-Meteo reports windspeed in km/h unless asked otherwise.
type openMeteoResponse struct {
	CurrentWeather *struct {
		Temperature *float64 `json:"temperature"`
		Windspeed   *float64 `json:"windspeed"`
		Time        string   `json:"time"`
	} `json:"current_weather"`
}
