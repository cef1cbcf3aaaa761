package inbound

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

var errStopWalk = errors.New("inbound: stop walk")

// Attachment is an image part pulled from a message.
type Attachment struct {
	Data        []byte
	Filename    string
	ContentType string
	// Index is the part's position in a depth-first walk, root included.
	Index int
}

// FirstImage returns the first non-empty image/* leaf part of raw, walking
// parts depth-first. It returns nil, nil when the message has no image.
func FirstImage(raw []byte) (*Attachment, error) {
	log := zap.L().With(zap.String("component", "inbound"))

	root, err := message.Read(bytes.NewReader(raw))
	if err != nil && !partErrorIsSoft(err) {
		return nil, eris.Wrap(err, "inbound: parse message")
	}

	var (
		found *Attachment
		index = -1
	)

	walkErr := root.Walk(func(_ []int, part *message.Entity, perr error) error {
		index++
		if part.MultipartReader() != nil {
			return nil
		}
		if perr != nil {
			log.Warn("inbound: skipping undecodable part", zap.Int("part", index), zap.Error(perr))
			return nil
		}

		ctype := mediaType(part.Header)
		if !strings.HasPrefix(ctype, "image/") {
			return nil
		}

		data, rerr := io.ReadAll(part.Body)
		if rerr != nil {
			log.Warn("inbound: image part unreadable", zap.Int("part", index), zap.Error(rerr))
			return nil
		}
		if len(data) == 0 {
			log.Warn("inbound: image part empty", zap.Int("part", index))
			return nil
		}

		name := filename(part.Header)
		if name == "" {
			name = fmt.Sprintf("inline-image-%d", index)
		}
		found = &Attachment{Data: data, Filename: name, ContentType: ctype, Index: index}
		return errStopWalk
	})
	if walkErr != nil && !errors.Is(walkErr, errStopWalk) {
		return nil, eris.Wrap(walkErr, "inbound: walk parts")
	}

	if found == nil {
		log.Info("inbound: no image part", zap.Int("parts", index+1))
		return nil, nil
	}
	log.Info("inbound: image part selected",
		zap.Int("part", found.Index),
		zap.String("filename", found.Filename),
		zap.String("content_type", found.ContentType),
		zap.Int("bytes", len(found.Data)),
	)
	return found, nil
}

func partErrorIsSoft(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// mediaType returns the lowercased media type, tolerating malformed
// parameters.
func mediaType(h message.Header) string {
	t, _, err := h.ContentType()
	if err == nil {
		return strings.ToLower(t)
	}
	raw := h.Get("Content-Type")
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// filename takes the Content-Disposition filename, then the Content-Type
// name parameter.
func filename(h message.Header) string {
	if _, params, err := h.ContentDisposition(); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	if _, params, err := h.ContentType(); err == nil {
		if name := strings.TrimSpace(params["name"]); name != "" {
			return name
		}
	}
	return ""
}
