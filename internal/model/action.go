package model

// Action tags the decision taken at a lattice node.
// Keep these values stable; they are intended for CSV output.
type Action string

const (
	ActionHold     Action = "HOLD"
	ActionExercise Action = "EXERCISE"
	ActionCall     Action = "CALL"
	ActionConvert  Action = "CONVERT"
	ActionRedeem   Action = "REDEEM"
)

// NodeValue is the result of evaluating a contract at one lattice node.
type NodeValue struct {
	Value  float64
	Action Action
}

// Hold returns a node value that keeps the continuation value.
func Hold(v float64) NodeValue {
	return NodeValue{Value: v, Action: ActionHold}
}
