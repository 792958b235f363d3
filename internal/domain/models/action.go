package models

// Action is the strategy decision for one closed bar.
type Action string

const (
	ActionLongEntry  Action = "LONG_ENTRY"
	ActionShortEntry Action = "SHORT_ENTRY"
	ActionLongExit   Action = "LONG_EXIT"
	ActionShortExit  Action = "SHORT_EXIT"
	ActionNone       Action = "NONE"
)

// IsEntry reports whether the action opens a position.
func (a Action) IsEntry() bool {
	return a == ActionLongEntry || a == ActionShortEntry
}

// IsExit reports whether the action closes a position.
func (a Action) IsExit() bool {
	return a == ActionLongExit || a == ActionShortExit
}

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderSide maps a position side to the exchange order side for entry.
func (s Side) OrderSide() string {
	if s == SideLong {
		return "BUY"
	}
	return "SELL"
}

// CloseOrderSide maps a position side to the exchange order side for exit.
func (s Side) CloseOrderSide() string {
	if s == SideLong {
		return "SELL"
	}
	return "BUY"
}
