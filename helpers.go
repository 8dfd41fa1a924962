package ssr

import (
	"html"
	"io"
)

// WriteScriptTag writes a <script> element whose content is produced by
// body. The nonce attribute is omitted when nonce is empty.
func WriteScriptTag(w io.Writer, nonce string, body func(io.Writer) error) error {
	open := "<script>"
	if nonce != "" {
		open = `<script nonce="` + html.EscapeString(nonce) + `">`
	}
	if _, err := io.WriteString(w, open); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</script>")
	return err
}
