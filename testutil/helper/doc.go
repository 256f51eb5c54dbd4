// Package helper provides test doubles for the simulation packages: a slog handler spy,
// a metrics collector spy, a scriptable in-memory Backend and a scripted Random source.
package helper
