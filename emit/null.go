package emit

import "context"

// NullEmitter discards every event. Useful in tests and whenever
// observability overhead is unwanted.
type NullEmitter struct{}

func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

func (n *NullEmitter) Emit(Event)                                    {}
func (n *NullEmitter) EmitBatch(context.Context, []Event) error      { return nil }
func (n *NullEmitter) Flush(context.Context) error                   { return nil }
