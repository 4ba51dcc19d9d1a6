/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates the logic for parsing JSON request bodies and integrates error
handling to ensure data format correctness, facilitating subsequent business
logic processing.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"agrichat/internal/pkg/errs"
)

// MaxBodyBytes defines the maximum allowed size (1 MB) for JSON request bodies.
const MaxBodyBytes int64 = 1 << 20

// BindJSON attempts to bind the JSON data from the HTTP request body to the destination struct dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
