package zeta

// Bind appends cb to key's binding list. Registering the same callback twice
// makes it run twice per change; there is no unbind.
func (e *Engine) Bind(key string, cb Callback) {
	e.bindings[key] = append(e.bindings[key], cb)
}

// BindToDependencies binds cb once to every dependency of expr.
func (e *Engine) BindToDependencies(expr string, cb Callback) {
	for _, dep := range e.ExtractDependencies(expr) {
		e.Bind(dep, cb)
	}
}

// BindingCount returns how many callbacks are bound to key.
func (e *Engine) BindingCount(key string) int {
	return len(e.bindings[key])
}
