package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrTemplate = errors.New("invalid campaign message template")
)
