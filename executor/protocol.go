package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/caffeineduck/gorupad/hostfunc"
)

// The prelude talks to the host over stderr with NUL-delimited frames:
//
//	\x00GORU_READY\x00        session loop is waiting for commands
//	\x00GORU_DONE\x00         the last exec command finished
//	\x00GORU_ERROR:<msg>\x00  the last exec command raised
//	\x00GORU:<json>\x00       host function call, answered on stdin
//
// Anything outside a frame is ordinary stderr output.
const (
	frameReadyBody   = "GORU_READY"
	frameDoneBody    = "GORU_DONE"
	frameErrorPrefix = "GORU_ERROR:"
	frameCallPrefix  = "GORU:"
)

type frameKind int

const (
	frameText frameKind = iota
	frameReady
	frameDone
	frameError
	frameCall
)

type frame struct {
	kind    frameKind
	payload string
}

// nextFrame splits content at the first complete frame. plain is the text
// that precedes it and rest is what follows. When no complete frame exists,
// ok is false and rest holds any partial frame that needs more input.
func nextFrame(content string) (plain string, f frame, rest string, ok bool) {
	start := strings.IndexByte(content, 0)
	if start == -1 {
		return content, frame{}, "", false
	}

	end := strings.IndexByte(content[start+1:], 0)
	if end == -1 {
		return content[:start], frame{}, content[start:], false
	}

	body := content[start+1 : start+1+end]
	plain = content[:start]
	rest = content[start+2+end:]

	switch {
	case body == frameReadyBody:
		f = frame{kind: frameReady}
	case body == frameDoneBody:
		f = frame{kind: frameDone}
	case strings.HasPrefix(body, frameErrorPrefix):
		f = frame{kind: frameError, payload: strings.TrimPrefix(body, frameErrorPrefix)}
	case strings.HasPrefix(body, frameCallPrefix):
		f = frame{kind: frameCall, payload: strings.TrimPrefix(body, frameCallPrefix)}
	default:
		f = frame{kind: frameText, payload: "\x00" + body + "\x00"}
	}
	return plain, f, rest, true
}

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// sessionProtocol is the stderr writer of a session. It turns frames into
// lifecycle signals and host calls and keeps the remaining text as stderr.
type sessionProtocol struct {
	ctx         context.Context
	registry    *hostfunc.Registry
	stdinWriter io.Writer

	buf        bytes.Buffer
	realStderr bytes.Buffer

	readyCh chan struct{}
	doneCh  chan error
	ready   bool

	mu      sync.Mutex
	writeMu *sync.Mutex
}

func newSessionProtocol(ctx context.Context, registry *hostfunc.Registry, stdinWriter io.Writer, writeMu *sync.Mutex) *sessionProtocol {
	return &sessionProtocol{
		ctx:         ctx,
		registry:    registry,
		stdinWriter: stdinWriter,
		readyCh:     make(chan struct{}),
		doneCh:      make(chan error, 1),
		writeMu:     writeMu,
	}
}

func (p *sessionProtocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)

	for {
		plain, f, rest, ok := nextFrame(p.buf.String())
		p.realStderr.WriteString(plain)
		p.buf.Reset()
		p.buf.WriteString(rest)
		if !ok {
			break
		}
		p.handle(f)
	}

	return len(data), nil
}

func (p *sessionProtocol) handle(f frame) {
	switch f.kind {
	case frameText:
		p.realStderr.WriteString(f.payload)
	case frameReady:
		if !p.ready {
			p.ready = true
			close(p.readyCh)
		}
	case frameDone:
		p.signal(nil)
	case frameError:
		p.signal(&ExecError{Message: f.payload})
	case frameCall:
		var req callRequest
		if err := json.Unmarshal([]byte(f.payload), &req); err != nil {
			go p.respond(callResponse{Error: "invalid call format"})
			return
		}
		// Write is called from inside the guest's fd_write, so the call
		// has to be answered from another goroutine.
		go p.respond(p.executeCall(req))
	}
}

func (p *sessionProtocol) signal(err error) {
	select {
	case p.doneCh <- err:
	default:
	}
}

func (p *sessionProtocol) executeCall(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	result, err := fn(p.ctx, args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *sessionProtocol) respond(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.stdinWriter.Write(append(data, '\n'))
}

func (p *sessionProtocol) Ready() <-chan struct{} {
	return p.readyCh
}

func (p *sessionProtocol) Done() <-chan error {
	return p.doneCh
}

// ResetExec drops any stale completion signal and stderr text before a new
// exec command is sent.
func (p *sessionProtocol) ResetExec() {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.doneCh:
	default:
	}
	p.realStderr.Reset()
}

func (p *sessionProtocol) Stderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realStderr.String()
}
