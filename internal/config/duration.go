package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is an alias of time.Duration used for deserializing time strings
// like "5s" from json and env values.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}

	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch value := raw.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration: %#v", raw)
	}

	return nil
}

// UnmarshalText lets caarlos0/env parse "5s" style values.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
