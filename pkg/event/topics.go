package event

import "fmt"

// Subjects form a closed set of scopes: per-station for kitchen displays,
// per-role for staff terminals, per-order for the customer status page.
const (
	OrderIntakeTopic = "orders.placed"

	// KitchenTicketsWildcard matches every station-scoped ticket subject.
	KitchenTicketsWildcard = "kitchen.tickets.*"

	// KitchenTicketsStream is the JetStream subject filter for ticket
	// event replay.
	KitchenTicketsStream = "kitchen.tickets.>"

	RoleWaiters = "waiters"
	RoleCashier = "cashier"
	RoleKitchen = "kitchen"
)

// StationTopic scopes an event to one preparation station.
func StationTopic(stationCode string) string {
	return fmt.Sprintf("kitchen.tickets.%s", stationCode)
}

// RoleTopic scopes an event to a staff role.
func RoleTopic(role string) string {
	return fmt.Sprintf("staff.%s", role)
}

// OrderTopic scopes an event to a single order's status page.
func OrderTopic(orderID string) string {
	return fmt.Sprintf("orders.status.%s", orderID)
}
