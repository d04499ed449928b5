package model

import (
	"time"
)

// ViolationType classifies a detected proctoring-policy breach.
type ViolationType string

const (
	ViolationTabHidden      ViolationType = "tab_hidden"
	ViolationWindowBlur     ViolationType = "window_blur"
	ViolationFullscreenExit ViolationType = "fullscreen_exit"
	ViolationScreenshotKey  ViolationType = "screenshot_key"
	ViolationCopyAttempt    ViolationType = "copy_attempt"
	ViolationDevtools       ViolationType = "devtools"
	// ViolationWarningTimeout is recorded when the taker fails to acknowledge
	// a violation warning before its countdown elapses.
	ViolationWarningTimeout ViolationType = "warning_timeout"
)

// Known reports whether t is one of the recognized violation types.
func (t ViolationType) Known() bool {
	switch t {
	case ViolationTabHidden, ViolationWindowBlur, ViolationFullscreenExit,
		ViolationScreenshotKey, ViolationCopyAttempt, ViolationDevtools,
		ViolationWarningTimeout:
		return true
	}
	return false
}

// ViolationEvent is one entry in the violation ledger's log.
type ViolationEvent struct {
	Type ViolationType `json:"type"`
	At   time.Time     `json:"at"`
}

// LogViolationRequest is the client payload for reporting a violation.
type LogViolationRequest struct {
	Type ViolationType `json:"type" binding:"required,violationtype"`
}
