// Package inbound decides which mailbox messages carry a bake list and pulls
// the photo out of them.
package inbound

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

func init() {
	message.CharsetReader = charsetReader
}

// charsetReader decodes input from any charset known to the WHATWG encoding
// index (which covers the aliases mail clients actually send).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.ToLower(strings.TrimSpace(charset)))
	if err != nil {
		return nil, eris.Wrapf(err, "inbound: unknown charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}

// DecodeHeader collapses RFC 2047 encoded words into plain text. Input that
// cannot be decoded is returned as is.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}
	out, err := wordDecoder.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return out
}

// Headers holds the raw header values the filter looks at.
type Headers struct {
	From    string
	Subject string
}

// ParseHeaders reads the top-level header block of a raw message.
func ParseHeaders(raw []byte) (Headers, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return Headers{}, eris.Wrap(err, "inbound: read header")
	}
	return Headers{From: h.Get("From"), Subject: h.Get("Subject")}, nil
}
