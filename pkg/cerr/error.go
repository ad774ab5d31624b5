package cerr

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code    Code
	Msg     string   // returned to the caller together with the code
	Err     error    // underlying error, kept for logs
	Details []string // machine-parseable detail items (e.g. blocking ticket IDs)
}

func NewError(code Code, msg string, underlying error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
}

func NewErrorWithDetails(code Code, msg string, underlying error, details []string) *Error {
	err := NewError(code, msg, underlying)
	err.Details = details
	return err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}

// CodeOf returns the code attached to err, or Internal for foreign errors.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return Internal
}

// DetailsOf returns the detail items attached to err, if any.
func DetailsOf(err error) []string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Details
	}
	return nil
}

type httpError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WriteJSONError writes err to rw with the code's HTTP status and a
// machine-parseable JSON body.
func WriteJSONError(rw http.ResponseWriter, err error) {
	code := CodeOf(err)
	msg := "server error"
	var cerr *Error
	if errors.As(err, &cerr) {
		msg = cerr.Msg
	}
	body := httpError{Code: code.String(), Message: msg, Details: DetailsOf(err)}

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(code.HTTPCode())
	buf := &bytes.Buffer{}
	if encErr := json.NewEncoder(buf).Encode(body); encErr != nil {
		buf = bytes.NewBufferString(`{"code":"internal","message":"server error"}`)
	}
	_, _ = rw.Write(buf.Bytes())
}
