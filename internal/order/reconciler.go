package order

import (
	"github.com/comandaclub/comanda/pkg/enums/orderstatus"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
)

// Reconcile derives the overall order status from the statuses of every
// ticket cut from it. Precedence, first match wins:
//
//  1. all tickets served                          -> served
//  2. all tickets ready (or already served)       -> ready
//  3. any ticket preparing                        -> preparing
//  4. all tickets new                             -> confirmed
//  5. otherwise (mixed)                           -> preparing
//
// Cancelled tickets are ignored for the aggregate unless every ticket was
// cancelled, in which case the order is cancelled too. Sticky order
// statuses are the caller's concern; Reconcile is a pure derivation.
func Reconcile(statuses []ticketstatus.Status) orderstatus.Status {
	active := make([]ticketstatus.Status, 0, len(statuses))
	for _, s := range statuses {
		if s.Code() == ticketstatus.Statuses.Cancelled.Code() {
			continue
		}
		active = append(active, s)
	}

	if len(active) == 0 {
		if len(statuses) > 0 {
			return orderstatus.Statuses.Cancelled
		}
		return orderstatus.Statuses.Confirmed
	}

	allServed := true
	allReady := true
	anyPreparing := false
	allNew := true
	for _, s := range active {
		if s.Code() != ticketstatus.Statuses.Served.Code() {
			allServed = false
		}
		switch s.Code() {
		case ticketstatus.Statuses.Ready.Code(), ticketstatus.Statuses.Served.Code():
		default:
			allReady = false
		}
		if s.Code() == ticketstatus.Statuses.Preparing.Code() {
			anyPreparing = true
		}
		if s.Code() != ticketstatus.Statuses.New.Code() {
			allNew = false
		}
	}

	switch {
	case allServed:
		return orderstatus.Statuses.Served
	case allReady:
		return orderstatus.Statuses.Ready
	case anyPreparing:
		return orderstatus.Statuses.Preparing
	case allNew:
		return orderstatus.Statuses.Confirmed
	default:
		return orderstatus.Statuses.Preparing
	}
}
