package health

import (
	"strings"

	"github.com/rcourtman/unraid-mcp/internal/unraid"
)

// DiskRole is the function of a disk within the array.
type DiskRole string

const (
	RoleBoot   DiskRole = "boot"
	RoleParity DiskRole = "parity"
	RoleData   DiskRole = "data"
	RoleCache  DiskRole = "cache"
)

// HealthCounts buckets the disks of one role. The zero value is a valid,
// all-zero count.
type HealthCounts struct {
	Healthy int `json:"healthy"`
	Failed  int `json:"failed"`
	Missing int `json:"missing"`
	New     int `json:"new"`
	Warning int `json:"warning"`
	Unknown int `json:"unknown"`
}

// Total is the number of disks counted.
func (c HealthCounts) Total() int {
	return c.Healthy + c.Failed + c.Missing + c.New + c.Warning + c.Unknown
}

// Add returns the bucket-wise sum of both counts.
func (c HealthCounts) Add(other HealthCounts) HealthCounts {
	return HealthCounts{
		Healthy: c.Healthy + other.Healthy,
		Failed:  c.Failed + other.Failed,
		Missing: c.Missing + other.Missing,
		New:     c.New + other.New,
		Warning: c.Warning + other.Warning,
		Unknown: c.Unknown + other.Unknown,
	}
}

type diskBucket int

const (
	bucketUnknown diskBucket = iota
	bucketHealthy
	bucketWarning
	bucketFailed
	bucketMissing
	bucketNew
)

// Classify counts disks per health bucket. It never returns nil-like results:
// an empty list yields zero counts.
func Classify(disks []unraid.Disk) HealthCounts {
	var counts HealthCounts
	for _, disk := range disks {
		switch classifyDisk(disk) {
		case bucketHealthy:
			counts.Healthy++
		case bucketWarning:
			counts.Warning++
		case bucketFailed:
			counts.Failed++
		case bucketMissing:
			counts.Missing++
		case bucketNew:
			counts.New++
		default:
			counts.Unknown++
		}
	}
	return counts
}

func classifyDisk(disk unraid.Disk) diskBucket {
	switch normalizeDiskStatus(disk.Status) {
	case "OK":
		if disk.Warning || disk.Critical {
			return bucketWarning
		}
		return bucketHealthy
	case "DSBL", "DISABLED", "INVALID":
		return bucketFailed
	case "NP", "NOT_PRESENT":
		return bucketMissing
	case "NEW":
		return bucketNew
	default:
		return bucketUnknown
	}
}

// normalizeDiskStatus maps "disk_ok" and "OK" to the same code.
func normalizeDiskStatus(status string) string {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	return strings.TrimPrefix(normalized, "DISK_")
}
