package domain

import "strings"

// ColumnSynonyms maps lower-cased source headers to canonical column names.
// Canonical names map to themselves implicitly.
var ColumnSynonyms = map[string]string{
	"total deaths":            ColTotalDeaths,
	"total damage ('000 us$)": ColInfrastructureLoss,
	"disaster type":           ColDisasterType,
	"temperature_celsius":     ColTemperature,
	"pressure_mb":             ColPressure,
	"humidity":                ColHumidity,
	"wind_kph":                ColWindSpeed,
	"lat":                     ColLatitude,
	"lon":                     ColLongitude,
	"lng":                     ColLongitude,
	"long":                    ColLongitude,
}

// DisasterColumns lists the columns a disaster history file must provide.
var DisasterColumns = []string{
	ColLatitude,
	ColLongitude,
	ColDisasterType,
	ColTotalDeaths,
	ColInfrastructureLoss,
}

// WeatherColumns lists the columns a weather file must provide.
var WeatherColumns = []string{
	ColLatitude,
	ColLongitude,
	ColTemperature,
	ColPressure,
	ColHumidity,
	ColWindSpeed,
}

// CanonicalColumn normalizes a raw header: trim, lower-case, then resolve synonyms.
func CanonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	if canonical, ok := ColumnSynonyms[h]; ok {
		return canonical
	}
	return h
}

// MissingColumns returns the entries of required absent from index, in required order.
func MissingColumns(index map[string]int, required []string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
