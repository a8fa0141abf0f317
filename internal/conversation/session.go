package conversation

import (
	"github.com/m3rciful/sroki/core/telegram/state"
	"github.com/m3rciful/sroki/internal/reminder"
)

// Stage is one step of a capture sequence.
type Stage = state.State

const (
	StageIdle           Stage = state.StateIdle
	StageAwaitText      Stage = "await_text"
	StageAwaitStartDate Stage = "await_start_date"
	StageAwaitUnit      Stage = "await_unit"
	StageAwaitQuantity  Stage = "await_quantity"
	StageAwaitBulkList  Stage = "await_bulk_list"
)

// Flow selects which capture sequence Start begins.
type Flow int

const (
	// FlowSingle collects text, start date, unit and quantity for one reminder.
	FlowSingle Flow = iota
	// FlowBulk accepts a multi-line "label / DD.MM.YYYY" list.
	FlowBulk
)

// Session is the per-chat progress of a capture sequence.
type Session struct {
	Step      Stage
	Text      string
	StartDate reminder.Date
	Unit      reminder.Unit
}

// Stage implements state.Session.
func (s Session) Stage() state.State { return s.Step }

// Sessions is the per-chat session store the engine runs on.
type Sessions = state.Manager[Session]
