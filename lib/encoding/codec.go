// Package encoding implements the frame codec spoken between the renderer and
// an out-of-process JavaScript host.
//
// Every frame is one msgpack-encoded map. msgpack values are self-delimiting,
// so frames are written back to back on the stream without a length prefix:
//
//	-> {"id": 7, "k": 1, "e": "ReactDOMServer.renderToString(...)"}
//	<- {"id": 7, "s": "<div>...</div>"}
//	<- {"id": 8, "err": {"m": "ReferenceError: Foo is not defined", "st": "..."}}
package encoding

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrInvalidFormat is returned when a frame cannot be decoded.
	ErrInvalidFormat = errors.New("encoding: invalid frame format")
	// ErrUnknownKind is returned when a request names an unsupported kind.
	ErrUnknownKind = errors.New("encoding: unknown request kind")
	// ErrIDMismatch is returned when a response answers a different request.
	ErrIDMismatch = errors.New("encoding: response id mismatch")
)

// Kind selects the result type the host must produce.
type Kind uint8

const (
	// KindString asks for the expression's value as a string.
	KindString Kind = iota + 1
	// KindBool asks for the expression's value as a boolean.
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Request asks the host to evaluate one expression.
type Request struct {
	ID         uint64 `msgpack:"id"`
	Kind       Kind   `msgpack:"k"`
	Expression string `msgpack:"e"`
}

// Response carries the value of a Request with the same ID, or the error the
// expression threw inside the host.
type Response struct {
	ID     uint64 `msgpack:"id"`
	String string `msgpack:"s,omitempty"`
	Bool   bool   `msgpack:"b,omitempty"`
	Error  *Error `msgpack:"err,omitempty"`
}

// Error describes an exception thrown while evaluating an expression.
type Error struct {
	Message string `msgpack:"m"`
	Stack   string `msgpack:"st,omitempty"`
}

// Conn reads and writes frames on a byte stream. Either side of the
// protocol can use it. A Conn is not safe for concurrent use.
type Conn struct {
	w   *bufio.Writer
	enc *msgpack.Encoder
	dec *msgpack.Decoder
}

// NewConn wraps rw.
func NewConn(rw io.ReadWriter) *Conn {
	w := bufio.NewWriter(rw)
	return &Conn{
		w:   w,
		enc: msgpack.NewEncoder(w),
		dec: msgpack.NewDecoder(bufio.NewReader(rw)),
	}
}

// WriteRequest sends req and flushes it.
func (c *Conn) WriteRequest(req *Request) error {
	if req.Kind != KindString && req.Kind != KindBool {
		return errors.Wrapf(ErrUnknownKind, "kind %d", req.Kind)
	}
	return c.write(req)
}

// ReadRequest receives one request. io.EOF is returned unchanged when the
// stream ends between frames.
func (c *Conn) ReadRequest() (*Request, error) {
	var req Request
	if err := c.read(&req); err != nil {
		return nil, err
	}
	if req.Kind != KindString && req.Kind != KindBool {
		return nil, errors.Wrapf(ErrUnknownKind, "request %d has kind %d", req.ID, req.Kind)
	}
	return &req, nil
}

// WriteResponse sends resp and flushes it.
func (c *Conn) WriteResponse(resp *Response) error {
	return c.write(resp)
}

// ReadResponse receives one response. io.EOF is returned unchanged when the
// stream ends between frames.
func (c *Conn) ReadResponse() (*Response, error) {
	var resp Response
	if err := c.read(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Conn) write(v any) error {
	if err := c.enc.Encode(v); err != nil {
		return errors.Wrap(err, "encoding: write frame")
	}
	return errors.Wrap(c.w.Flush(), "encoding: flush frame")
}

func (c *Conn) read(v any) error {
	err := c.dec.Decode(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return io.EOF
	}
	return errors.Wrapf(ErrInvalidFormat, "%v", err)
}
