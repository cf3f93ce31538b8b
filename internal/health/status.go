package health

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the system-wide verdict of a health report. Values are ordered by
// severity so that rules can be merged with MaxStatus.
type Status int

const (
	StatusHealthy Status = iota
	StatusWarning
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusWarning:
		return "warning"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode health status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "healthy":
		return StatusHealthy, nil
	case "warning":
		return StatusWarning, nil
	case "degraded":
		return StatusDegraded, nil
	case "unhealthy":
		return StatusUnhealthy, nil
	default:
		return StatusHealthy, fmt.Errorf("unknown health status %q", raw)
	}
}

// MaxStatus returns the more severe of two statuses.
func MaxStatus(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// ArrayHealth is the overall verdict for the storage array.
type ArrayHealth int

const (
	ArrayHealthy ArrayHealth = iota
	ArrayWarning
	ArrayDegraded
	ArrayCritical
)

func (a ArrayHealth) String() string {
	switch a {
	case ArrayHealthy:
		return "HEALTHY"
	case ArrayWarning:
		return "WARNING"
	case ArrayDegraded:
		return "DEGRADED"
	case ArrayCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("ArrayHealth(%d)", int(a))
	}
}

func (a ArrayHealth) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *ArrayHealth) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode array health: %w", err)
	}
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HEALTHY":
		*a = ArrayHealthy
	case "WARNING":
		*a = ArrayWarning
	case "DEGRADED":
		*a = ArrayDegraded
	case "CRITICAL":
		*a = ArrayCritical
	default:
		return fmt.Errorf("unknown array health %q", raw)
	}
	return nil
}

// MaxArrayHealth returns the more severe of two array verdicts.
func MaxArrayHealth(a, b ArrayHealth) ArrayHealth {
	if b > a {
		return b
	}
	return a
}
