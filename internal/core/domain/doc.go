// Package domain contains the result types, error taxonomy and status models
// shared by every deployment mode.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain
