package utils

import "time"

// DateLocation is the application's timezone. UTC until InitializeDateLocation runs.
var DateLocation = time.UTC

// InitializeDateLocation loads the named timezone; an empty name means UTC.
func InitializeDateLocation(timezone string) error {
	if timezone == "" {
		timezone = "UTC"
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return err
	}
	DateLocation = loc
	return nil
}
