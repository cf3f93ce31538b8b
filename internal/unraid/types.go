package unraid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// HealthPayload is the data block returned by the comprehensive health query.
// A nil section means the API did not return it, or returned it as null or {}.
type HealthPayload struct {
	Info          *SystemInfo    `json:"info"`
	Array         *Array         `json:"array"`
	Notifications *Notifications `json:"notifications"`
	Docker        *Docker        `json:"docker"`

	// fields counts the top-level keys seen while decoding.
	fields int
}

// IsEmpty reports whether the data block carried nothing at all. A block
// whose keys all held empty sections is not empty.
func (p *HealthPayload) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.fields == 0 && p.Info == nil && p.Array == nil && p.Notifications == nil && p.Docker == nil
}

func (p *HealthPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = HealthPayload{fields: len(raw)}
	sections := []struct {
		key  string
		dest any
	}{
		{"info", &p.Info},
		{"array", &p.Array},
		{"notifications", &p.Notifications},
		{"docker", &p.Docker},
	}
	for _, section := range sections {
		value, ok := raw[section.key]
		if !ok || emptySection(value) {
			continue
		}
		decoder := json.NewDecoder(bytes.NewReader(value))
		decoder.UseNumber()
		if err := decoder.Decode(section.dest); err != nil {
			return fmt.Errorf("%s: %w", section.key, err)
		}
	}
	return nil
}

func emptySection(value json.RawMessage) bool {
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return false
	}
	switch compact.String() {
	case "null", "{}":
		return true
	}
	return false
}

// SystemInfo mirrors the `info` type of the Unraid API.
type SystemInfo struct {
	MachineID string       `json:"machineId,omitempty"`
	Time      string       `json:"time,omitempty"`
	Versions  *Versions    `json:"versions,omitempty"`
	OS        *OSInfo      `json:"os,omitempty"`
	CPU       *CPUInfo     `json:"cpu,omitempty"`
	Memory    *MemoryInfo  `json:"memory,omitempty"`
	Baseboard *Baseboard   `json:"baseboard,omitempty"`
	System    *SystemBoard `json:"system,omitempty"`
}

// UnraidVersion returns versions.core.unraid or "".
func (s *SystemInfo) UnraidVersion() string {
	if s == nil || s.Versions == nil || s.Versions.Core == nil {
		return ""
	}
	return s.Versions.Core.Unraid
}

// Uptime returns os.uptime or "".
func (s *SystemInfo) Uptime() string {
	if s == nil || s.OS == nil {
		return ""
	}
	return s.OS.Uptime
}

type Versions struct {
	Core     *CoreVersions     `json:"core,omitempty"`
	Packages map[string]string `json:"packages,omitempty"`
}

type CoreVersions struct {
	Unraid string `json:"unraid,omitempty"`
	API    string `json:"api,omitempty"`
	Kernel string `json:"kernel,omitempty"`
}

type OSInfo struct {
	Platform string `json:"platform,omitempty"`
	Distro   string `json:"distro,omitempty"`
	Release  string `json:"release,omitempty"`
	Codename string `json:"codename,omitempty"`
	Kernel   string `json:"kernel,omitempty"`
	Arch     string `json:"arch,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	FQDN     string `json:"fqdn,omitempty"`
	Build    string `json:"build,omitempty"`
	Serial   string `json:"serial,omitempty"`
	UEFI     bool   `json:"uefi,omitempty"`
	Uptime   string `json:"uptime,omitempty"`
}

type CPUInfo struct {
	Manufacturer string  `json:"manufacturer,omitempty"`
	Brand        string  `json:"brand,omitempty"`
	Vendor       string  `json:"vendor,omitempty"`
	Family       string  `json:"family,omitempty"`
	Model        string  `json:"model,omitempty"`
	Cores        FlexInt `json:"cores"`
	Threads      FlexInt `json:"threads"`
	Processors   FlexInt `json:"processors"`
	Socket       string  `json:"socket,omitempty"`
}

type MemoryInfo struct {
	Layout []MemoryStick `json:"layout,omitempty"`
}

type MemoryStick struct {
	Bank         string  `json:"bank,omitempty"`
	Type         string  `json:"type,omitempty"`
	ClockSpeed   FlexInt `json:"clockSpeed"`
	FormFactor   string  `json:"formFactor,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	PartNum      string  `json:"partNum,omitempty"`
	SerialNum    string  `json:"serialNum,omitempty"`
	Size         FlexInt `json:"size"`
}

type Baseboard struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Version      string `json:"version,omitempty"`
	Serial       string `json:"serial,omitempty"`
	AssetTag     string `json:"assetTag,omitempty"`
}

type SystemBoard struct {
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Version      string `json:"version,omitempty"`
	Serial       string `json:"serial,omitempty"`
	UUID         string `json:"uuid,omitempty"`
	SKU          string `json:"sku,omitempty"`
}

// Array mirrors the `array` type. Disk lists are grouped by role.
type Array struct {
	ID       string    `json:"id,omitempty"`
	State    string    `json:"state,omitempty"`
	Capacity *Capacity `json:"capacity,omitempty"`
	Boot     *Disk     `json:"boot,omitempty"`
	Parities []Disk    `json:"parities,omitempty"`
	Disks    []Disk    `json:"disks,omitempty"`
	Caches   []Disk    `json:"caches,omitempty"`
}

type Capacity struct {
	Kilobytes *CapacityFigures `json:"kilobytes,omitempty"`
	Disks     *CapacityFigures `json:"disks,omitempty"`
}

// CapacityFigures keeps the raw values: the API sends them as numeric strings
// and callers must tolerate anything.
type CapacityFigures struct {
	Free  any `json:"free"`
	Used  any `json:"used"`
	Total any `json:"total"`
}

// Disk is one array member as reported by the API.
type Disk struct {
	ID         string  `json:"id,omitempty"`
	Idx        FlexInt `json:"idx"`
	Name       string  `json:"name,omitempty"`
	Device     string  `json:"device,omitempty"`
	Size       FlexInt `json:"size"`
	Status     string  `json:"status,omitempty"`
	Rotational bool    `json:"rotational"`
	Temp       FlexInt `json:"temp"`
	NumReads   FlexInt `json:"numReads"`
	NumWrites  FlexInt `json:"numWrites"`
	NumErrors  FlexInt `json:"numErrors"`
	FsSize     FlexInt `json:"fsSize"`
	FsFree     FlexInt `json:"fsFree"`
	FsUsed     FlexInt `json:"fsUsed"`
	Exportable bool    `json:"exportable,omitempty"`
	Type       string  `json:"type,omitempty"`
	Warning    Flag    `json:"warning"`
	Critical   Flag    `json:"critical"`
	FsType     string  `json:"fsType,omitempty"`
	Comment    string  `json:"comment,omitempty"`
	Format     string  `json:"format,omitempty"`
	Transport  string  `json:"transport,omitempty"`
	Color      string  `json:"color,omitempty"`
}

type Notifications struct {
	Overview *NotificationOverview `json:"overview,omitempty"`
}

type NotificationOverview struct {
	Unread  *NotificationCounts `json:"unread,omitempty"`
	Archive *NotificationCounts `json:"archive,omitempty"`
}

type NotificationCounts struct {
	Info    FlexInt `json:"info"`
	Warning FlexInt `json:"warning"`
	Alert   FlexInt `json:"alert"`
	Total   FlexInt `json:"total"`
}

type Docker struct {
	Containers []Container `json:"containers,omitempty"`
}

type Container struct {
	ID     string   `json:"id,omitempty"`
	Names  []string `json:"names,omitempty"`
	Image  string   `json:"image,omitempty"`
	State  string   `json:"state,omitempty"`
	Status string   `json:"status,omitempty"`
}

// FlexInt decodes integers that may arrive as JSON numbers, numeric strings
// or null. Values that cannot be read as an integer decode to zero with Valid unset.
type FlexInt struct {
	Value int64
	Valid bool
}

// Int returns the value, or zero when absent.
func (f FlexInt) Int() int64 {
	return f.Value
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	value, ok := parseInt64Raw(data)
	if ok {
		f.Value = value
		f.Valid = true
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// Flag decodes the disk warning/critical fields. The API has exposed them as
// booleans and as integer thresholds over time; any truthy value counts as set.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return fmt.Errorf("decode flag: %w", err)
	}

	switch value := decoded.(type) {
	case bool:
		*f = Flag(value)
	case json.Number:
		parsed, err := value.Float64()
		*f = Flag(err == nil && parsed != 0)
	case string:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "", "0", "false", "no", "off":
			*f = false
		default:
			*f = true
		}
	default:
		*f = false
	}
	return nil
}

func parseInt64Raw(data []byte) (int64, bool) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return 0, false
	}
	return ParseInt64(decoded)
}

// floatToInt64 truncates f, rejecting NaN, infinities and values int64 cannot hold.
func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseInt64 coerces the loosely typed numeric values found in API responses.
// Floats are truncated toward zero.
func ParseInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case float64:
		return floatToInt64(typed)
	case json.Number:
		if v, err := typed.Int64(); err == nil {
			return v, true
		}
		if f, err := typed.Float64(); err == nil {
			return floatToInt64(f)
		}
	case string:
		s := strings.TrimSpace(typed)
		if s == "" {
			return 0, false
		}
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
