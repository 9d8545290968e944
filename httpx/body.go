package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	HeaderContentType = "Content-Type"
)

var (
	ContentTypeJSON = "application/json"                                // ContentTypeJSON is used for bodies that are encoded as JSON.
	ContentTypeText = "text/plain;charset=UTF-8"                        // ContentTypeText is used for string bodies.
	ContentTypeForm = "application/x-www-form-urlencoded;charset=UTF-8" // ContentTypeForm is used for [url.Values] bodies.
)

// encodeBody returns a reader for the body, and the content type implied by its Go type, if any.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), ContentTypeText, nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), ContentTypeForm, nil
	case io.Reader:
		return b, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return bytes.NewReader(data), ContentTypeJSON, nil
	}
}

var (
	forbiddenMethods = []string{http.MethodConnect, http.MethodTrace, "TRACK"}
	upperMethods     = []string{http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPost, http.MethodPut}
)

// normalizeMethod upper-cases well known methods, leaving others as given.
func normalizeMethod(method string) (string, error) {
	if !validToken(method) {
		return "", fmt.Errorf("%w: '%s' is not a valid method", ErrInvalidMethod, method)
	}
	upper := strings.ToUpper(method)
	for _, m := range forbiddenMethods {
		if upper == m {
			return "", fmt.Errorf("%w: '%s' is forbidden", ErrInvalidMethod, method)
		}
	}
	for _, m := range upperMethods {
		if upper == m {
			return upper, nil
		}
	}
	return method, nil
}

func validToken(s string) bool {
	if len(s) == 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isTokenChar(s[i]) {
			return false
		}
	}
	return true
}

func isTokenChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}
