// Package domain models historical disaster records, weather observations, and
// the predictions derived from them.
//
// # Data Sources
//
// Training data arrives as two independent CSV exports: a disaster history
// (one row per recorded occurrence, EM-DAT style headers such as
// "Disaster Type", "Total Deaths", "Total Damage ('000 US$)") and a weather
// repository (one row per observation, WeatherAPI style headers such as
// "temperature_celsius", "pressure_mb", "wind_kph"). The two files share no key;
// they are joined purely by coordinate proximity (see package geo).
//
// # Column Conventions
//
// Headers are matched case-insensitively after trimming. A fixed synonym
// table, [ColumnSynonyms], rewrites source headers to canonical names:
//
//	total deaths              → total_deaths
//	total damage ('000 us$)   → infrastructure_loss
//	disaster type             → disaster_type
//	temperature_celsius       → temperature
//	pressure_mb               → pressure
//	wind_kph                  → wind_speed
//	lat                       → latitude
//	lon, lng, long            → longitude
//
// Numeric cells that fail to parse are carried as NaN until cleaning, which
// mirrors coerce-on-read tabular semantics: a bad cell never aborts a load,
// it only disqualifies its row later.
//
// # Coordinates
//
// Latitude must lie in [-90, 90] and longitude in [-180, 180]. Rows violating
// this, or with missing coordinates, are dropped before matching and reported
// as counts.
//
// # Feature Contract
//
// Every model in a bundle consumes the same six-element vector, in this order:
//
//	latitude, longitude, temperature, pressure, humidity, wind_speed
//
// The order is fixed by [FeatureColumns] and recorded in each bundle manifest.
//
// # Severity
//
// Severity is an advisory score in [0, 1]:
//
//	0.4 · min(deaths / 10 000, 1)
//	+ 0.3 · min(infrastructure_loss / 1e9, 1)
//	+ 0.3 · type_weight
//
// with type weights Earthquake 0.9, Cyclone 0.8, Flood 0.7, Landslide 0.6,
// Drought 0.5 and 0.5 for any other type. See [Severity].
package domain
