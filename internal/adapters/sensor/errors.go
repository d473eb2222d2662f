package sensor

import (
	"errors"
	"fmt"
)

// Sentinel kinds for sensor errors.
var (
	ErrMalformed   = errors.New("malformed sensor input")
	ErrWrongAddr   = errors.New("unexpected message address")
	ErrUnsupported = errors.New("unsupported link type")
)

// Drop reasons used in IngestError and metrics labels.
const (
	ReasonMalformed = "malformed"
	ReasonAddress   = "address"
)

// IngestError reports input that was dropped. Ingestion continues after it.
type IngestError struct {
	Source string
	Reason string
	Err    error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: dropped %s input: %v", e.Source, e.Reason, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
