//go:build !linux

package process

// poll drains every stream in its own goroutine.
func (t *tee) poll(streams ...stream) {
	for _, s := range streams {
		t.drain(s.file, s.sink)
	}
}
