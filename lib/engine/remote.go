package engine

import (
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/pthm/ssr/lib/encoding"
)

// Remote is an Engine hosted by another process and reached over a byte
// stream using the lib/encoding frame protocol. Calls are serialized; a
// Remote evaluates one expression at a time.
type Remote struct {
	mu     sync.Mutex
	conn   *encoding.Conn
	closer io.Closer
	nextID uint64
	broken error
	logger log.Logger
}

// NewRemote speaks the frame protocol over rwc. Closing the Remote closes rwc.
func NewRemote(rwc io.ReadWriteCloser, logger log.Logger) *Remote {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Remote{
		conn:   encoding.NewConn(rwc),
		closer: rwc,
		logger: logger,
	}
}

// EvaluateString implements Engine.
func (r *Remote) EvaluateString(ctx context.Context, expr string) (string, error) {
	resp, err := r.call(ctx, encoding.KindString, expr)
	if err != nil {
		return "", err
	}
	return resp.String, nil
}

// EvaluateBool implements Engine.
func (r *Remote) EvaluateBool(ctx context.Context, expr string) (bool, error) {
	resp, err := r.call(ctx, encoding.KindBool, expr)
	if err != nil {
		return false, err
	}
	return resp.Bool, nil
}

func (r *Remote) call(ctx context.Context, kind encoding.Kind, expr string) (*encoding.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken != nil {
		return nil, r.broken
	}

	r.nextID++
	id := r.nextID
	if err := r.conn.WriteRequest(&encoding.Request{ID: id, Kind: kind, Expression: expr}); err != nil {
		return nil, r.fail(err)
	}
	resp, err := r.conn.ReadResponse()
	if err != nil {
		return nil, r.fail(err)
	}
	if resp.ID != id {
		return nil, r.fail(errors.Wrapf(encoding.ErrIDMismatch, "response %d for request %d", resp.ID, id))
	}
	if resp.Error != nil {
		return nil, &RuntimeError{
			Expression: expr,
			Message:    resp.Error.Message,
			Stack:      resp.Error.Stack,
		}
	}
	return resp, nil
}

// fail marks the transport unusable. Callers hold r.mu.
func (r *Remote) fail(cause error) error {
	level.Error(r.logger).Log("msg", "engine transport failed", "err", cause)
	r.broken = errors.Wrapf(ErrEngineClosed, "%v", cause)
	return r.broken
}

// Close shuts the transport down. Later calls fail with ErrEngineClosed.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken == nil {
		r.broken = ErrEngineClosed
	}
	return r.closer.Close()
}

// StartProcess launches a host process that serves the frame protocol on
// its stdin and stdout, and returns a Remote connected to it. The process
// lives until the Remote is closed; ctx only bounds the start-up. Anything
// the host writes to stderr is logged.
func StartProcess(ctx context.Context, logger log.Logger, name string, args ...string) (*Remote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "engine-host", "cmd", name)

	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "engine: stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "engine: stdout pipe")
	}
	cmd.Stderr = log.NewStdlibAdapter(level.Warn(logger))

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "engine: start %s", name)
	}
	level.Info(logger).Log("msg", "started engine host", "pid", cmd.Process.Pid)

	return NewRemote(&processPipe{stdin: stdin, stdout: stdout, cmd: cmd}, logger), nil
}

// processPipe joins a child's stdin and stdout into one stream.
type processPipe struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	cmd    *exec.Cmd
}

func (p *processPipe) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *processPipe) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close closes stdin, which tells the host to exit, then waits for it.
func (p *processPipe) Close() error {
	if err := p.stdin.Close(); err != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}
