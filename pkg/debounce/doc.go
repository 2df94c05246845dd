// Package debounce suppresses repeats of the same (host, error) signal inside
// a short window. State is bounded by an LRU and by periodic Sweep calls, and
// is intentionally lost on restart.
package debounce
