package siti

import (
	"errors"

	"github.com/RyanBlaney/sonido-siti/algorithms/normalize"
	"github.com/RyanBlaney/sonido-siti/algorithms/spatial"
	"github.com/RyanBlaney/sonido-siti/algorithms/temporal"
	"github.com/RyanBlaney/sonido-siti/config"
	"github.com/RyanBlaney/sonido-siti/transcode"
)

// Errors reported by a run. All of them are fatal.
var (
	ErrRangeMismatch          = normalize.ErrRangeMismatch
	ErrUnsupportedFrameFormat = transcode.ErrUnsupportedFrameFormat
	ErrDimensionMismatch      = temporal.ErrDimensionMismatch
	ErrUnsupportedFrameSize   = spatial.ErrUnsupportedFrameSize
	ErrInvalidSettings        = config.ErrInvalidSettings

	// ErrStreamDone is returned when frames are fed to a finished calculator
	ErrStreamDone = errors.New("stream already finished")
)
