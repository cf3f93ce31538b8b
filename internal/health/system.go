package health

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

const (
	highLatencyThresholdMs     = 5000
	veryHighLatencyThresholdMs = 10000
)

const noResponseIssue = "No response from Unraid API"

// Input is everything BuildReport needs from one health query.
type Input struct {
	Payload   *unraid.HealthPayload
	LatencyMs float64
	// APIURL is echoed in the unraid_system section.
	APIURL string
	Now    time.Time
}

// Report is the system-wide health verdict. Server and performance sections
// are filled in by the caller.
type Report struct {
	Status        Status               `json:"status"`
	Timestamp     string               `json:"timestamp"`
	APILatencyMs  float64              `json:"api_latency_ms"`
	Server        *ServerInfo          `json:"server,omitempty"`
	UnraidSystem  *SystemSection       `json:"unraid_system,omitempty"`
	ArrayStatus   *ArraySection        `json:"array_status,omitempty"`
	Notifications *NotificationSummary `json:"notifications,omitempty"`
	Docker        *DockerSummary       `json:"docker_services,omitempty"`
	Performance   *Performance         `json:"performance,omitempty"`
	Issues        []string             `json:"issues,omitempty"`
	Error         string               `json:"error,omitempty"`

	evaluated bool
}

// Evaluated reports whether the payload went through the health rules. Short
// circuits and recovered faults are not evaluated.
func (r Report) Evaluated() bool {
	return r.evaluated
}

type ServerInfo struct {
	Name                 string  `json:"name"`
	Version              string  `json:"version"`
	Transport            string  `json:"transport"`
	Host                 string  `json:"host"`
	Port                 int     `json:"port"`
	ProcessUptimeSeconds float64 `json:"process_uptime_seconds"`
}

type SystemSection struct {
	Status    string `json:"status"`
	URL       string `json:"url,omitempty"`
	MachineID string `json:"machine_id,omitempty"`
	Time      string `json:"time,omitempty"`
	Version   string `json:"version,omitempty"`
	Uptime    string `json:"uptime,omitempty"`
}

// ArraySection reports the array state. OverallHealth is only set when the
// payload carried disk lists.
type ArraySection struct {
	State         string       `json:"state"`
	Healthy       bool         `json:"healthy"`
	OverallHealth *ArrayHealth `json:"overall_health,omitempty"`
}

type NotificationSummary struct {
	UnreadTotal              int64 `json:"unread_total"`
	UnreadAlerts             int64 `json:"unread_alerts"`
	UnreadWarnings           int64 `json:"unread_warnings"`
	HasCriticalNotifications bool  `json:"has_critical_notifications"`
}

// DockerSummary is informational and never changes the report status.
type DockerSummary struct {
	TotalContainers   int `json:"total_containers"`
	RunningContainers int `json:"running_containers"`
	StoppedContainers int `json:"stopped_containers"`
	ContainersHealthy int `json:"containers_healthy"`
}

type Performance struct {
	APIResponseTimeMs     float64 `json:"api_response_time_ms"`
	HealthCheckDurationMs float64 `json:"health_check_duration_ms"`
}

type finding struct {
	status Status
	issue  string
}

type rule func(payload *unraid.HealthPayload, latencyMs float64) (finding, bool)

// Evaluated in order; issues keep this order.
var systemRules = []rule{
	systemInfoRule,
	arrayStateRule,
	arrayPresentRule,
	unreadAlertsRule,
	highLatencyRule,
	veryHighLatencyRule,
}

func systemInfoRule(payload *unraid.HealthPayload, _ float64) (finding, bool) {
	if payload.Info != nil {
		return finding{}, false
	}
	return finding{status: StatusDegraded, issue: "Unable to retrieve system info"}, true
}

func arrayStateRule(payload *unraid.HealthPayload, _ float64) (finding, bool) {
	if payload.Array == nil {
		return finding{}, false
	}
	state := arrayState(payload.Array)
	if arrayStateHealthy(state) {
		return finding{}, false
	}
	return finding{status: StatusWarning, issue: "Array in unexpected state: " + state}, true
}

func arrayPresentRule(payload *unraid.HealthPayload, _ float64) (finding, bool) {
	if payload.Array != nil {
		return finding{}, false
	}
	return finding{status: StatusWarning, issue: "Unable to retrieve array status"}, true
}

func unreadAlertsRule(payload *unraid.HealthPayload, _ float64) (finding, bool) {
	alerts := unreadCounts(payload).Alert.Int()
	if alerts <= 0 {
		return finding{}, false
	}
	return finding{status: StatusWarning, issue: fmt.Sprintf("%d unread alert notification(s)", alerts)}, true
}

func highLatencyRule(_ *unraid.HealthPayload, latencyMs float64) (finding, bool) {
	if latencyMs <= highLatencyThresholdMs {
		return finding{}, false
	}
	return finding{status: StatusWarning, issue: "High API latency: " + formatMs(latencyMs) + "ms"}, true
}

func veryHighLatencyRule(_ *unraid.HealthPayload, latencyMs float64) (finding, bool) {
	if latencyMs <= veryHighLatencyThresholdMs {
		return finding{}, false
	}
	return finding{status: StatusDegraded, issue: "Very high API latency: " + formatMs(latencyMs) + "ms"}, true
}

// BuildReport classifies one health query result. It never panics: a fault
// while evaluating yields an unhealthy report whose only issue is the fault.
func BuildReport(input Input) (report Report) {
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	latency := RoundMs(input.LatencyMs)

	defer func() {
		if recovered := recover(); recovered != nil {
			report = Report{
				Status:       StatusUnhealthy,
				Timestamp:    FormatTimestamp(now),
				APILatencyMs: latency,
				Issues:       []string{fmt.Sprint(recovered)},
			}
		}
	}()

	report = Report{
		Status:       StatusHealthy,
		Timestamp:    FormatTimestamp(now),
		APILatencyMs: latency,
	}

	payload := input.Payload
	if payload.IsEmpty() {
		report.Status = StatusUnhealthy
		report.Issues = []string{noResponseIssue}
		return report
	}

	for _, evaluate := range systemRules {
		if result, ok := evaluate(payload, latency); ok {
			report.Status = MaxStatus(report.Status, result.status)
			report.Issues = append(report.Issues, result.issue)
		}
	}

	report.UnraidSystem = systemSection(payload.Info, input.APIURL)
	report.ArrayStatus = arraySection(payload.Array)
	report.Notifications = notificationSummary(payload.Notifications)
	report.Docker = dockerSummary(payload.Docker)
	report.evaluated = true

	return report
}

// FailureReport is the report for a query that never produced a payload.
func FailureReport(err error, latencyMs float64, now time.Time) Report {
	if now.IsZero() {
		now = time.Now()
	}
	return Report{
		Status:       StatusUnhealthy,
		Timestamp:    FormatTimestamp(now),
		APILatencyMs: RoundMs(latencyMs),
		Issues:       []string{err.Error()},
		Error:        err.Error(),
	}
}

func systemSection(info *unraid.SystemInfo, apiURL string) *SystemSection {
	if info == nil {
		return nil
	}
	return &SystemSection{
		Status:    "connected",
		URL:       apiURL,
		MachineID: info.MachineID,
		Time:      info.Time,
		Version:   info.UnraidVersion(),
		Uptime:    info.Uptime(),
	}
}

func arraySection(array *unraid.Array) *ArraySection {
	if array == nil {
		return nil
	}
	state := arrayState(array)
	section := &ArraySection{
		State:   state,
		Healthy: arrayStateHealthy(state),
	}
	if counts := ClassifyArray(array); len(counts) > 0 {
		overall := AggregateArray(counts)
		section.OverallHealth = &overall
	}
	return section
}

func notificationSummary(notifications *unraid.Notifications) *NotificationSummary {
	if notifications == nil || notifications.Overview == nil {
		return nil
	}
	unread := notifications.Overview.Unread
	if unread == nil {
		unread = &unraid.NotificationCounts{}
	}
	return &NotificationSummary{
		UnreadTotal:              unread.Total.Int(),
		UnreadAlerts:             unread.Alert.Int(),
		UnreadWarnings:           unread.Warning.Int(),
		HasCriticalNotifications: unread.Alert.Int() > 0,
	}
}

func dockerSummary(docker *unraid.Docker) *DockerSummary {
	if docker == nil || len(docker.Containers) == 0 {
		return nil
	}
	summary := &DockerSummary{TotalContainers: len(docker.Containers)}
	for _, container := range docker.Containers {
		switch strings.ToLower(strings.TrimSpace(container.State)) {
		case "running":
			summary.RunningContainers++
		case "exited":
			summary.StoppedContainers++
		}
		if strings.HasPrefix(container.Status, "Up") {
			summary.ContainersHealthy++
		}
	}
	return summary
}

func unreadCounts(payload *unraid.HealthPayload) unraid.NotificationCounts {
	if payload.Notifications == nil || payload.Notifications.Overview == nil || payload.Notifications.Overview.Unread == nil {
		return unraid.NotificationCounts{}
	}
	return *payload.Notifications.Overview.Unread
}

func arrayState(array *unraid.Array) string {
	if state := strings.TrimSpace(array.State); state != "" {
		return state
	}
	return "unknown"
}

func arrayStateHealthy(state string) bool {
	return state == "STARTED" || state == "STOPPED"
}

// RoundMs rounds a millisecond figure to two decimals.
func RoundMs(ms float64) float64 {
	return math.Round(ms*100) / 100
}

// FormatTimestamp renders t as UTC ISO-8601.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}
