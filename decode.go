package sshrs

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const charsetUTF8 = "utf-8"

// lookupCharset resolves a charset label. An empty label or any UTF-8 alias returns nil,
// which selects strict UTF-8 validation.
func lookupCharset(name string) (encoding.Encoding, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil //nolint:nilnil // nil encoding selects strict UTF-8
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output charset %q: %w", name, err)
	}

	if canonical, _ := htmlindex.Name(enc); canonical == charsetUTF8 {
		return nil, nil //nolint:nilnil // nil encoding selects strict UTF-8
	}

	return enc, nil
}

// decodeOutput converts raw command output to a string. Without an encoding the bytes must be
// valid UTF-8; nothing is replaced or dropped.
func decodeOutput(b []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		if off := invalidUTF8Offset(b); off >= 0 {
			return "", &DecodingError{Charset: charsetUTF8, Offset: off}
		}

		return string(b), nil
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		name, _ := htmlindex.Name(enc)

		return "", &DecodingError{Charset: name, Offset: -1, Err: err}
	}

	return string(out), nil
}

// invalidUTF8Offset returns the offset of the first byte that does not start a valid UTF-8
// sequence, or -1 if b is valid.
func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}

		i += size
	}

	return -1
}
