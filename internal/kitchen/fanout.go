package kitchen

import (
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/station"
	"github.com/comandaclub/comanda/pkg/event"
)

// FanOut cuts an incoming order into station tickets: one ticket per
// distinct station, each carrying the lines routed to it in the order they
// appeared on the order. Lines without a recognized station land on the
// default station. An order whose lines all vanish produces no tickets.
func FanOut(evt *event.OrderPlacedEvent, now time.Time) []*Ticket {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return nil
	}

	byStation := make(map[string]*Ticket)
	var order []string

	for _, line := range evt.Lines {
		st := line.Station
		if station.ByName(st) == nil {
			st = station.Default.Code()
		}

		ticket, ok := byStation[st]
		if !ok {
			ticket = &Ticket{
				OrderID:    orderID,
				Station:    st,
				TableRef:   evt.TableRef,
				OrderType:  evt.OrderType,
				Additional: evt.Additional,
				Notes:      evt.Notes,
			}
			ticket.BeforeCreate()
			ticket.CreatedAt = now
			ticket.UpdatedAt = now
			byStation[st] = ticket
			order = append(order, st)
		}

		lineID, err := uuid.Parse(line.OrderLineID)
		if err != nil {
			continue
		}
		menuItemID, _ := uuid.Parse(line.MenuItemID)

		modifiers := make([]string, 0, len(line.Modifiers))
		for _, m := range line.Modifiers {
			modifiers = append(modifiers, m.Name)
		}

		ticket.Lines = append(ticket.Lines, TicketLine{
			ID:          aqm.GenerateNewID(),
			OrderLineID: lineID,
			MenuItemID:  menuItemID,
			Name:        line.Name,
			Quantity:    line.Quantity,
			Modifiers:   modifiers,
			Notes:       line.Notes,
			Status:      linestatus.Statuses.Pending.Code(),
		})
	}

	tickets := make([]*Ticket, 0, len(order))
	for _, st := range order {
		ticket := byStation[st]
		if len(ticket.Lines) == 0 {
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets
}
