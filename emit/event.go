package emit

// Event is one observability record: a node dispatch, a transition, an
// effect fulfillment, a checkpoint operation, or a runtime warning.
type Event struct {
	RunID  string
	Step   int
	NodeID string
	Msg    string
	Meta   map[string]any
}
