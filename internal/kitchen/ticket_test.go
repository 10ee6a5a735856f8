package kitchen

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/comandaclub/comanda/pkg/enums/linestatus"
	"github.com/comandaclub/comanda/pkg/enums/ticketstatus"
)

func newTestTicket(lineCount int) *Ticket {
	t := &Ticket{
		OrderID:  uuid.New(),
		Station:  "grill",
		TableRef: "T1",
	}
	t.BeforeCreate()
	for i := 0; i < lineCount; i++ {
		t.Lines = append(t.Lines, TicketLine{
			ID:          uuid.New(),
			OrderLineID: uuid.New(),
			Name:        "Burger",
			Quantity:    1,
			Status:      linestatus.Statuses.Pending.Code(),
		})
	}
	return t
}

func TestTicketStart(t *testing.T) {
	ticket := newTestTicket(2)
	now := time.Now()

	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if ticket.Status != ticketstatus.Statuses.Preparing.Code() {
		t.Errorf("Status = %s, want preparing", ticket.Status)
	}
	if ticket.StartedAt == nil {
		t.Error("StartedAt not stamped")
	}
	for i, line := range ticket.Lines {
		if line.Status != linestatus.Statuses.Preparing.Code() {
			t.Errorf("Lines[%d].Status = %s, want preparing", i, line.Status)
		}
		if line.StartedAt == nil {
			t.Errorf("Lines[%d].StartedAt not stamped", i)
		}
	}
}

func TestTicketStartFromServedRejected(t *testing.T) {
	ticket := newTestTicket(1)
	ticket.Status = ticketstatus.Statuses.Served.Code()

	err := ticket.Start(time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Start() error = %v, want ErrIllegalTransition", err)
	}
	if ticket.Status != ticketstatus.Statuses.Served.Code() {
		t.Error("rejected transition must not be written through")
	}
}

func TestTicketMarkReadyPullsLines(t *testing.T) {
	ticket := newTestTicket(3)
	now := time.Now()
	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ticket.Lines[0].Status = linestatus.Statuses.Ready.Code()

	if err := ticket.MarkReady(now); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}

	if ticket.Status != ticketstatus.Statuses.Ready.Code() {
		t.Errorf("Status = %s, want ready", ticket.Status)
	}
	if ticket.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}
	for i, line := range ticket.Lines {
		if line.Status != linestatus.Statuses.Ready.Code() {
			t.Errorf("Lines[%d].Status = %s, want ready", i, line.Status)
		}
	}
}

func TestTicketLinePromotion(t *testing.T) {
	ticket := newTestTicket(3)
	now := time.Now()
	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ready := linestatus.Statuses.Ready

	// First two lines ready: ticket stays preparing.
	for _, i := range []int{0, 1} {
		if err := ticket.SetLineStatus(ticket.Lines[i].ID, ready, now); err != nil {
			t.Fatalf("SetLineStatus(line %d) error = %v", i, err)
		}
		if ticket.Status != ticketstatus.Statuses.Preparing.Code() {
			t.Fatalf("after line %d: Status = %s, want preparing", i, ticket.Status)
		}
	}

	// Last line ready: ticket promoted.
	if err := ticket.SetLineStatus(ticket.Lines[2].ID, ready, now); err != nil {
		t.Fatalf("SetLineStatus(last line) error = %v", err)
	}
	if ticket.Status != ticketstatus.Statuses.Ready.Code() {
		t.Errorf("Status = %s, want ready after last line", ticket.Status)
	}
	if ticket.CompletedAt == nil {
		t.Error("CompletedAt not stamped on promotion")
	}
}

func TestTicketLinePromotionIgnoresCancelledLines(t *testing.T) {
	ticket := newTestTicket(2)
	now := time.Now()
	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := ticket.SetLineStatus(ticket.Lines[0].ID, linestatus.Statuses.Cancelled, now); err != nil {
		t.Fatalf("SetLineStatus(cancel) error = %v", err)
	}
	if err := ticket.SetLineStatus(ticket.Lines[1].ID, linestatus.Statuses.Ready, now); err != nil {
		t.Fatalf("SetLineStatus(ready) error = %v", err)
	}

	if ticket.Status != ticketstatus.Statuses.Ready.Code() {
		t.Errorf("Status = %s, want ready when only active line is ready", ticket.Status)
	}
}

func TestTicketSetLineStatusUnknownLine(t *testing.T) {
	ticket := newTestTicket(1)

	err := ticket.SetLineStatus(uuid.New(), linestatus.Statuses.Ready, time.Now())
	if !errors.Is(err, ErrLineNotFound) {
		t.Errorf("SetLineStatus() error = %v, want ErrLineNotFound", err)
	}
}

func TestTicketSetLineStatusIllegal(t *testing.T) {
	ticket := newTestTicket(1)
	ticket.Lines[0].Status = linestatus.Statuses.Cancelled.Code()

	err := ticket.SetLineStatus(ticket.Lines[0].ID, linestatus.Statuses.Ready, time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("SetLineStatus() error = %v, want ErrIllegalTransition", err)
	}
}

func TestTicketBump(t *testing.T) {
	ticket := newTestTicket(2)
	now := time.Now()
	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := ticket.Bump(now); err != nil {
		t.Fatalf("Bump() error = %v", err)
	}

	if ticket.Status != ticketstatus.Statuses.Served.Code() {
		t.Errorf("Status = %s, want served", ticket.Status)
	}
	if ticket.ServedAt == nil {
		t.Error("ServedAt not stamped")
	}
	for i, line := range ticket.Lines {
		if line.Status != linestatus.Statuses.Served.Code() {
			t.Errorf("Lines[%d].Status = %s, want served", i, line.Status)
		}
	}
}

func TestTicketBumpServedIsNoop(t *testing.T) {
	ticket := newTestTicket(1)
	now := time.Now()
	if err := ticket.Bump(now); err != nil {
		t.Fatalf("first Bump() error = %v", err)
	}
	served := *ticket.ServedAt

	if err := ticket.Bump(now.Add(time.Minute)); err != nil {
		t.Fatalf("second Bump() error = %v", err)
	}
	if !ticket.ServedAt.Equal(served) {
		t.Error("second bump must not restamp ServedAt")
	}
}

func TestTicketBumpCancelledRejected(t *testing.T) {
	ticket := newTestTicket(1)
	if err := ticket.Cancel(time.Now()); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	err := ticket.Bump(time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Bump() error = %v, want ErrIllegalTransition", err)
	}
}

func TestTicketRecall(t *testing.T) {
	ticket := newTestTicket(2)
	now := time.Now()
	if err := ticket.Bump(now); err != nil {
		t.Fatalf("Bump() error = %v", err)
	}

	if err := ticket.Recall(now.Add(time.Minute)); err != nil {
		t.Fatalf("Recall() error = %v", err)
	}

	if ticket.Status != ticketstatus.Statuses.Ready.Code() {
		t.Errorf("Status = %s, want ready", ticket.Status)
	}
	if ticket.ServedAt != nil {
		t.Error("ServedAt must be cleared on recall")
	}
	for i, line := range ticket.Lines {
		if line.Status != linestatus.Statuses.Ready.Code() {
			t.Errorf("Lines[%d].Status = %s, want ready", i, line.Status)
		}
	}
}

func TestTicketRecallFromPreparingRejected(t *testing.T) {
	ticket := newTestTicket(1)
	if err := ticket.Start(time.Now()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	err := ticket.Recall(time.Now())
	if !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("Recall() error = %v, want ErrIllegalTransition", err)
	}
}

func TestTicketCancel(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(*Ticket) error
		wantErr bool
	}{
		{name: "fromNew", prepare: func(*Ticket) error { return nil }},
		{name: "fromPreparing", prepare: func(tk *Ticket) error { return tk.Start(time.Now()) }},
		{name: "fromReady", prepare: func(tk *Ticket) error { return tk.MarkReady(time.Now()) }},
		{name: "fromServed", prepare: func(tk *Ticket) error { return tk.Bump(time.Now()) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTestTicket(1)
			if err := tt.prepare(ticket); err != nil {
				t.Fatalf("prepare: %v", err)
			}

			err := ticket.Cancel(time.Now())
			if tt.wantErr {
				if !errors.Is(err, ErrIllegalTransition) {
					t.Errorf("Cancel() error = %v, want ErrIllegalTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cancel() error = %v", err)
			}
			if ticket.Status != ticketstatus.Statuses.Cancelled.Code() {
				t.Errorf("Status = %s, want cancelled", ticket.Status)
			}
		})
	}
}

func TestTicketElapsedSeconds(t *testing.T) {
	ticket := newTestTicket(1)
	now := time.Now()

	if got := ticket.ElapsedSeconds(now); got != 0 {
		t.Errorf("ElapsedSeconds() before start = %d, want 0", got)
	}

	if err := ticket.Start(now); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := ticket.ElapsedSeconds(now.Add(90 * time.Second)); got != 90 {
		t.Errorf("ElapsedSeconds() = %d, want 90", got)
	}
}

func TestTicketPriorityRank(t *testing.T) {
	ticket := newTestTicket(1)
	if ticket.PriorityRank() != 1 {
		t.Errorf("default PriorityRank() = %d, want 1", ticket.PriorityRank())
	}
	ticket.Priority = "rush"
	if ticket.PriorityRank() != 2 {
		t.Errorf("rush PriorityRank() = %d, want 2", ticket.PriorityRank())
	}
}
