package ssr

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// propsJSON escapes <, > and & so serialized props are safe inside a
// <script> element, and sorts map keys so output is deterministic.
var propsJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// JSONSerializer streams values as JSON through json-iterator.
type JSONSerializer struct {
	// API overrides the default configuration when set.
	API jsoniter.API
}

// Serialize implements Serializer.
func (s JSONSerializer) Serialize(w io.Writer, v any) error {
	api := s.API
	if api == nil {
		api = propsJSON
	}
	stream := api.BorrowStream(w)
	defer api.ReturnStream(stream)

	stream.WriteVal(v)
	if stream.Error != nil {
		return errors.Wrap(stream.Error, "ssr: serialize")
	}
	return errors.Wrap(stream.Flush(), "ssr: serialize")
}
