package domain

import "time"

// DeviceType classifies the device a login originated from.
type DeviceType string

const (
	DeviceTypePC     DeviceType = "pc"
	DeviceTypeMobile DeviceType = "mobile"
	DeviceTypeOther  DeviceType = "other"
)

// AllDevices is the sentinel user agent list entry that targets every refresh session of a principal.
const AllDevices = "all"

// AuthHistoryEntry records a successful login of a principal.
type AuthHistoryEntry struct {
	ID         string
	UserID     string
	UserAgent  string
	DeviceType DeviceType
	CreatedAt  time.Time
}

// AuthHistoryPage is one page of history ordered newest first.
// SearchAfter is empty when no further page exists.
type AuthHistoryPage struct {
	Entries     []AuthHistoryEntry
	SearchAfter string
}

// RefreshSession is a stored refresh token bound to one device of one principal.
type RefreshSession struct {
	Key   string
	Token string
}

// IsAllDevices reports whether the user agent list requests a logout of every device.
func IsAllDevices(userAgents []string) bool {
	return len(userAgents) == 1 && userAgents[0] == AllDevices
}
