// Package process ingests consultation data for tracked legal processes.
//
// An external provider pushes consultation results over a webhook. The
// payload shape varies between provider versions, so the process number is
// probed in several known locations before the full raw payload is upserted
// into the consultation table keyed by that number.
package process
