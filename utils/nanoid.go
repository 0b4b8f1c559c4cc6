package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	alphabet    = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	traceLength = 22
)

// TraceID returns a random id used to correlate a request with its job
// and log lines.
func TraceID() string {
	return gonanoid.MustGenerate(alphabet, traceLength)
}
