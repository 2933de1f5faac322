package domain

// Per-country 24h spend thresholds in micros. Countries without an entry
// use BaselineFraudThresholdMicros.
const BaselineFraudThresholdMicros int64 = 10_000_000_000

var fraudThresholds = map[string]int64{
	"South Africa":             20_000_000_000,
	"Nigeria":                  15_000_000_000,
	"Egypt":                    15_000_000_000,
	"Kenya":                    10_000_000_000,
	"Algeria":                  10_000_000_000,
	"Morocco":                  10_000_000_000,
	"Tunisia":                  8_000_000_000,
	"Libya":                    8_000_000_000,
	"Ethiopia":                 5_000_000_000,
	"Uganda":                   5_000_000_000,
	"Tanzania":                 5_000_000_000,
	"Sudan":                    5_000_000_000,
	"Ghana":                    8_000_000_000,
	"Cote dIvoire":             7_000_000_000,
	"Senegal":                  7_000_000_000,
	"Mali":                     6_000_000_000,
	"Angola":                   8_000_000_000,
	"Zambia":                   6_000_000_000,
	"Zimbabwe":                 5_000_000_000,
	"Botswana":                 7_000_000_000,
	"DRC":                      5_000_000_000,
	"Cameroon":                 6_000_000_000,
	"Chad":                     4_000_000_000,
	"Republic of Congo":        4_000_000_000,
	"Central African Republic": 3_000_000_000,
}

// FraudThresholdFor returns the rolling 24h spend threshold for a country.
func FraudThresholdFor(country string) int64 {
	if t, ok := fraudThresholds[country]; ok {
		return t
	}
	return BaselineFraudThresholdMicros
}
