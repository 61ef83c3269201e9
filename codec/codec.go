// Package codec is the transport encoding of submitted source: standard
// base64 over UTF-8 text.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/cloudwego/base64x"
)

// ErrInvalidUTF8 is returned when the decoded bytes are not UTF-8 text
var ErrInvalidUTF8 = errors.New("codec: decoded content is not valid UTF-8")

// Encode encodes text to standard base64
func Encode(s string) string {
	return base64x.StdEncoding.EncodeToString([]byte(s))
}

// Decode decodes standard base64 to UTF-8 text
func Decode(s string) (string, error) {
	b, err := base64x.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("codec: invalid base64: %w", err)
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}
