package session

// State is the lifecycle state of a session.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
	Expired
)

var stateNames = map[State]string{
	Anonymous:      "anonymous",
	Authenticating: "authenticating",
	Authenticated:  "authenticated",
	Refreshing:     "refreshing",
	Expired:        "expired",
}

// States lists every state, in declaration order.
var States = []State{Anonymous, Authenticating, Authenticated, Refreshing, Expired}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HoldsCredentials reports whether a session in this state carries a token pair.
func (s State) HoldsCredentials() bool {
	return s == Authenticated || s == Refreshing
}
