package config

import "fmt"

// Error reports invalid or incomplete configuration. It is raised before
// any review work starts, and the CLI maps it to a dedicated exit code so
// scripts can tell misconfiguration from review failures.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}
