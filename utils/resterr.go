package utils

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// StatusCode extracts the HTTP status code from a discordgo REST error,
// or 0 when err is not a REST error.
func StatusCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the platform: the target
// object vanished or has not propagated yet.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether err is a permission denial. Forbidden is
// never retried.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsRateLimited reports whether err is a 429. Treated as a transient
// failure like any other transport error.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}
