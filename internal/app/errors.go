package service

import "errors"

// Sentinel errors returned by the engine.
var (
	ErrNotTitle    = errors.New("start is only accepted on the title screen")
	ErrNotPlaying  = errors.New("objects can only be dropped during play")
	ErrUnknownItem = errors.New("unknown item")
	ErrStopped     = errors.New("engine stopped")
)
