package mutation

// Result is the outcome of every gateway operation. Success means the
// remote store accepted the write; the registry changes only with the next
// pushed snapshot.
type Result struct {
	Err     error
	ID      string
	Success bool
}

func ok(id string) Result {
	return Result{Success: true, ID: id}
}

func fail(err error) Result {
	return Result{Err: err}
}
