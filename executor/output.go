package executor

import (
	"bytes"
	"strings"
	"sync"
)

// sessionOutput is the stdout writer of a session. While a sink is
// attached it delivers output line by line; otherwise it buffers the output
// of the current run.
type sessionOutput struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	emit    func(line string)
	partial []byte
}

func newSessionOutput() *sessionOutput {
	return &sessionOutput{}
}

func (o *sessionOutput) Write(data []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.emit == nil {
		o.buf.Write(data)
		return len(data), nil
	}

	o.partial = append(o.partial, data...)
	for {
		i := bytes.IndexByte(o.partial, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimSuffix(string(o.partial[:i]), "\r")
		o.partial = o.partial[i+1:]
		o.emit(line)
	}
	return len(data), nil
}

// attach routes output to emit until the returned func is called. The
// detach func flushes a trailing partial line.
func (o *sessionOutput) attach(emit func(line string)) (detach func()) {
	o.mu.Lock()
	o.emit = emit
	o.partial = o.partial[:0]
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.emit != nil && len(o.partial) > 0 {
			o.emit(string(o.partial))
		}
		o.partial = nil
		o.emit = nil
	}
}

func (o *sessionOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.String()
}

func (o *sessionOutput) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf.Reset()
}
