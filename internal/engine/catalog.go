package engine

import "context"

// LabelID resolves name to its catalog label ID, creating the mapping if
// it doesn't exist yet (spec section 4.1 get_or_create_label). Exposed
// for front ends (the CLI) that only have label names, not IDs, to work
// with.
func (e *Engine) LabelID(ctx context.Context, name string) (uint32, error) {
	return e.cat.GetOrCreateLabel(ctx, name)
}

// KeyID resolves name to its catalog property-key ID, creating the
// mapping if it doesn't exist yet.
func (e *Engine) KeyID(ctx context.Context, name string) (uint32, error) {
	return e.cat.GetOrCreateKey(ctx, name)
}

// InstanceID returns the UUID stamped into this database directory when
// it was first created.
func (e *Engine) InstanceID(ctx context.Context) (string, error) {
	return e.cat.InstanceID(ctx)
}
