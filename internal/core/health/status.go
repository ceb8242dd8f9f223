package health

import "time"

// Dependency is the state of one collaborator the service relies on.
type Dependency struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Status captures the state of the service at a moment in time.
type Status struct {
	Service      string       `json:"service"`
	Version      string       `json:"version"`
	Environment  string       `json:"environment"`
	Status       string       `json:"status"`
	StartedAt    time.Time    `json:"startedAt"`
	Uptime       string       `json:"uptime"`
	UptimeSecs   int64        `json:"uptimeSeconds"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}
