package entity

type ActionType string

const (
	ActionClick    ActionType = "CLICK"
	ActionTypeText ActionType = "TYPE"
	ActionScroll   ActionType = "SCROLL"
	ActionWait     ActionType = "WAIT"
	ActionComplete ActionType = "COMPLETE"
)

var actionTypes = []ActionType{ActionClick, ActionTypeText, ActionScroll, ActionWait, ActionComplete}

// ActionTypes returns the accepted action values in a fresh slice.
func ActionTypes() []ActionType {
	return append([]ActionType(nil), actionTypes...)
}

// Valid reports whether a is one of ActionTypes. Matching is case-sensitive.
func (a ActionType) Valid() bool {
	for _, t := range actionTypes {
		if a == t {
			return true
		}
	}
	return false
}

func (a ActionType) String() string {
	return string(a)
}

type ActionStatus string

const (
	StatusInProgress ActionStatus = "IN_PROGRESS"
	StatusSuccess    ActionStatus = "SUCCESS"
)

var actionStatuses = []ActionStatus{StatusInProgress, StatusSuccess}

func ActionStatuses() []ActionStatus {
	return append([]ActionStatus(nil), actionStatuses...)
}

// Valid reports whether s is one of ActionStatuses.
func (s ActionStatus) Valid() bool {
	for _, v := range actionStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s ActionStatus) String() string {
	return string(s)
}

// CoordMax is the upper bound of the normalized coordinate space on both axes.
const CoordMax = 1000

// Coords is a position in the resolution-independent [0,1000]x[0,1000] space.
type Coords struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InRange reports whether both axes lie within [0, CoordMax].
func (c Coords) InRange() bool {
	return c.X >= 0 && c.X <= CoordMax && c.Y >= 0 && c.Y <= CoordMax
}

// ToPixels maps normalized coordinates onto a viewport of the given size.
// CoordMax lands on the last pixel column or row, never past it.
func (c Coords) ToPixels(width, height int) (int, int) {
	return scale(c.X, width), scale(c.Y, height)
}

func scale(v, size int) int {
	if size <= 1 {
		return 0
	}
	return v * (size - 1) / CoordMax
}

// Action is the single recommended next interaction produced by one turn.
// Values are only built by the validator and never mutated afterwards.
type Action struct {
	Plan      string       `json:"plan"`
	Action    ActionType   `json:"action"`
	Target    string       `json:"target"`
	Coords    Coords       `json:"coords"`
	TextInput string       `json:"text_input"`
	Status    ActionStatus `json:"status"`
}

// Done reports whether the model considers the current goal finished.
func (a Action) Done() bool {
	return a.Action == ActionComplete || a.Status == StatusSuccess
}
