package schema

// Payload is a submission object. Top-level keys (title, notes, to_role, ...)
// coexist with a nested dynamic block stored under a prefix key such as
// "dynamic_form_data". An empty prefix binds field values directly at the
// payload root, which is the workflow-action convention.
type Payload map[string]interface{}

// Block returns the nested map addressed by prefix, creating it on demand.
// With an empty prefix the payload itself is the block.
func (p Payload) Block(prefix string) map[string]interface{} {
	if prefix == "" {
		return p
	}
	if existing, ok := p[prefix].(map[string]interface{}); ok {
		return existing
	}
	block := make(map[string]interface{})
	p[prefix] = block
	return block
}

// SetField stores a coerced field value under prefix.
func (p Payload) SetField(prefix, name string, value interface{}) {
	p.Block(prefix)[name] = value
}

// GetField reads a field value from under prefix.
func (p Payload) GetField(prefix, name string) (interface{}, bool) {
	var block map[string]interface{}
	if prefix == "" {
		block = p
	} else {
		nested, ok := p[prefix].(map[string]interface{})
		if !ok {
			return nil, false
		}
		block = nested
	}
	v, ok := block[name]
	return v, ok
}

// DeleteField removes a field value, used when a value is cleared back to
// its unset state.
func (p Payload) DeleteField(prefix, name string) {
	if prefix == "" {
		delete(p, name)
		return
	}
	if nested, ok := p[prefix].(map[string]interface{}); ok {
		delete(nested, name)
	}
}

// Clone returns a copy with the dynamic blocks copied one level deep.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		if nested, ok := v.(map[string]interface{}); ok {
			inner := make(map[string]interface{}, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
