package tools

import "errors"

// Every adapter reports failures through one of these kinds, wrapped with
// the upstream provider's name.
var (
	ErrAuthMissing = errors.New("tools: api credential missing")
	ErrUpstream    = errors.New("tools: upstream request failed")
	ErrNoResult    = errors.New("tools: upstream returned no result")
	ErrNetwork     = errors.New("tools: network failure")
)
