package security

import (
	ua "github.com/mileusna/useragent"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/core/port"
)

// DeviceClassifier buckets user agents into the device classes recorded in auth history.
type DeviceClassifier struct{}

var _ port.DeviceClassifier = DeviceClassifier{}

// Classify returns pc for desktop browsers, mobile for phones and tablets, other otherwise.
func (DeviceClassifier) Classify(userAgent string) domain.DeviceType {
	if userAgent == "" {
		return domain.DeviceTypeOther
	}

	parsed := ua.Parse(userAgent)
	switch {
	case parsed.Bot:
		return domain.DeviceTypeOther
	case parsed.Mobile || parsed.Tablet:
		return domain.DeviceTypeMobile
	case parsed.Desktop:
		return domain.DeviceTypePC
	default:
		return domain.DeviceTypeOther
	}
}
