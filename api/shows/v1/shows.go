// Package v1 holds the JSON shapes served under /api.
package v1

import "time"

type Show struct {
	Name        string    `json:"name"`
	ShowURI     string    `json:"show_uri"`
	Locale      string    `json:"locale"`
	Episodes    int       `json:"episodes"`
	LastChecked time.Time `json:"last_checked"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ListShowsResponse struct {
	Shows []Show `json:"shows"`
}
