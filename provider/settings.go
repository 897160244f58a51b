package provider

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeSettings fills out, a pointer to a struct with mapstructure tags,
// from the settings map handed to a Factory. Durations may be strings such
// as "30s". Keys with the wrong type are an error.
func DecodeSettings(settings map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("provider settings: %w", err)
	}
	return nil
}
