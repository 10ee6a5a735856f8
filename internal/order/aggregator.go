package order

import (
	"strconv"

	"github.com/aquamarinepk/aqm"
)

// Fees carries the percentages applied on top of the subtotal. It is
// threaded into the aggregator at construction time instead of being read
// from process-wide settings.
type Fees struct {
	ServiceChargePct float64
	TaxPct           float64
}

// FeesFromConfig reads the fee percentages, defaulting to 0 when unset.
func FeesFromConfig(config *aqm.Config) Fees {
	fees := Fees{}
	if config == nil {
		return fees
	}
	if v, _ := config.GetString("order.service_charge_pct"); v != "" {
		if pct, err := strconv.ParseFloat(v, 64); err == nil {
			fees.ServiceChargePct = pct
		}
	}
	if v, _ := config.GetString("order.tax_pct"); v != "" {
		if pct, err := strconv.ParseFloat(v, 64); err == nil {
			fees.TaxPct = pct
		}
	}
	return fees
}

// Aggregator builds orders from validated lines and keeps their derived
// totals consistent.
type Aggregator struct {
	fees Fees
}

func NewAggregator(fees Fees) *Aggregator {
	return &Aggregator{fees: fees}
}

// Build assembles a new order in status "new" from validated lines.
// Estimated preparation time is the maximum line prep time, not the sum;
// stations prepare in parallel.
func (a *Aggregator) Build(tableRef, orderType string, lines []OrderLine) *Order {
	o := NewOrder()
	o.TableRef = tableRef
	if orderType != "" {
		o.Type = orderType
	}
	o.ServiceChargePct = a.fees.ServiceChargePct
	o.TaxPct = a.fees.TaxPct
	o.BeforeCreate()
	o.AppendLines(lines)
	return o
}

// Append adds validated lines to an existing order and recomputes totals.
// The order keeps the fee percentages it was created with.
func (a *Aggregator) Append(o *Order, lines []OrderLine) {
	o.AppendLines(lines)
	o.BeforeUpdate()
}
