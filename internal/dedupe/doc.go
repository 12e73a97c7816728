// Package dedupe provides a bounded TTL cache for dropping duplicate
// message notifications delivered by an at-least-once transport.
package dedupe
