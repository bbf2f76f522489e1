package threadloop

// Operation is an opaque unit of work, performed on a loop's bound thread.
type Operation interface {
	Perform()
}

// OperationFunc adapts an ordinary function to an [Operation].
type OperationFunc func()

// Perform calls f.
func (f OperationFunc) Perform() { f() }

// isNilOperation treats a nil OperationFunc the same as a nil interface.
func isNilOperation(op Operation) bool {
	switch op := op.(type) {
	case nil:
		return true
	case OperationFunc:
		return op == nil
	default:
		return false
	}
}
