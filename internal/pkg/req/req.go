/*
Package req binds HTTP request bodies to input structs.

Binding is strict: unknown fields and trailing content are rejected so
malformed clients fail loudly instead of half-parsing.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"talkroom/internal/pkg/errs"
)

// BindJSON decodes the JSON request body into dst.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
