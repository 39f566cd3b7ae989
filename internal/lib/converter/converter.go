package converter

import (
	"math"
	"strconv"
)

// Amounts are stored in minor units (cents); the API speaks major units.

func ConvertAmountFloatToInt(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func ConvertAmountIntToFloat(amount int64) float64 {
	return float64(amount) / 100
}

func ConvertAmountIntToString(amount int64) string {
	return strconv.FormatFloat(ConvertAmountIntToFloat(amount), 'f', 2, 64)
}
