package enums

// NotificationType selects the inbox and push template for a message.
type NotificationType string

const (
	NotificationTypeBidOpen                 NotificationType = "bid_open"
	NotificationTypeEmergencyRouteAvailable NotificationType = "emergency_route_available"
	NotificationTypeRouteNowInstant         NotificationType = "route_now_instant"
	NotificationTypeBidWon                  NotificationType = "bid_won"
	NotificationTypeBidLost                 NotificationType = "bid_lost"
	NotificationTypeRouteAssigned           NotificationType = "route_assigned"
	NotificationTypeDriverNoShow            NotificationType = "driver_no_show"
)

var notificationTypes = []NotificationType{
	NotificationTypeBidOpen,
	NotificationTypeEmergencyRouteAvailable,
	NotificationTypeRouteNowInstant,
	NotificationTypeBidWon,
	NotificationTypeBidLost,
	NotificationTypeRouteAssigned,
	NotificationTypeDriverNoShow,
}

func (n NotificationType) IsValid() bool { return member(notificationTypes, n) }

func ParseNotificationType(value string) (NotificationType, error) {
	return parse(notificationTypes, "notification type", value)
}
