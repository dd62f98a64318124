package dto

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMode = errors.New("invalid run mode")

// RunMode selects which session a cycle screens.
type RunMode string

const (
	RunModeMorning   RunMode = "morning"
	RunModeAfternoon RunMode = "afternoon"
)

// ParseRunMode validates a mode given on the command line or API.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(strings.ToLower(strings.TrimSpace(s))) {
	case RunModeMorning:
		return RunModeMorning, nil
	case RunModeAfternoon:
		return RunModeAfternoon, nil
	}
	return "", fmt.Errorf("%w %q, expected morning or afternoon", ErrInvalidMode, s)
}

func (m RunMode) String() string {
	return string(m)
}
