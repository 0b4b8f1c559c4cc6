package config

import (
	"time"

	"github.com/spf13/viper"
)

// valueOr returns get(key) when the key is set, def otherwise. Zero values
// written explicitly in the file win over the default.
func valueOr[T any](v *viper.Viper, key string, def T, get func(string) T) T {
	if v.IsSet(key) {
		return get(key)
	}
	return def
}

func getDurationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	return valueOr(v, key, def, v.GetDuration)
}

func getUint32OrDefault(v *viper.Viper, key string, def uint32) uint32 {
	return valueOr(v, key, def, v.GetUint32)
}

func getIntOrDefault(v *viper.Viper, key string, def int) int {
	return valueOr(v, key, def, v.GetInt)
}

func getFloat64OrDefault(v *viper.Viper, key string, def float64) float64 {
	return valueOr(v, key, def, v.GetFloat64)
}

func getStringOrDefault(v *viper.Viper, key string, def string) string {
	return valueOr(v, key, def, v.GetString)
}
