package booking

// State is the closed set of booking workflow states.
type State int

const (
	// StateSelectingService: business and service being chosen, no date.
	StateSelectingService State = iota + 1
	// StateSelectingDate: a date is chosen and its slots are being fetched.
	StateSelectingDate
	StateSlotsLoaded
	// StateSlotsEmpty: the fetch returned nothing or failed. A failure
	// also sets the view's Error.
	StateSlotsEmpty
	StateSlotSelected
	StateSubmitting
	StateSuccess
	// StateFailed keeps the selected slot; DismissError returns to
	// StateSlotSelected.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSelectingService:
		return "selecting_service"
	case StateSelectingDate:
		return "selecting_date"
	case StateSlotsLoaded:
		return "slots_loaded"
	case StateSlotsEmpty:
		return "slots_empty"
	case StateSlotSelected:
		return "slot_selected"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Mode selects who the appointment is for.
type Mode int

const (
	// SelfService books for the signed-in client; the backend decides
	// the initial status.
	SelfService Mode = iota + 1
	// WalkIn is created by a business owner for a client without an
	// account and is confirmed immediately.
	WalkIn
)

func (m Mode) String() string {
	switch m {
	case SelfService:
		return "self_service"
	case WalkIn:
		return "walk_in"
	}
	return "unknown"
}
