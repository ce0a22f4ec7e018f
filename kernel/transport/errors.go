package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Category int

const (
	CategoryServer Category = iota
	CategoryValidation
	CategoryConflict
	CategoryNotFound
	CategoryNotReady
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryConflict:
		return "conflict"
	case CategoryNotFound:
		return "not found"
	case CategoryNotReady:
		return "not ready"
	default:
		return "server"
	}
}

// Error is the single error type returned by Client implementations. Detail
// is the human-readable message intended for display; it may be empty.
type Error struct {
	Category Category
	Status   int
	Op       string
	Detail   string
	Cause    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Category.String())
	sb.WriteString(" error")
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	} else if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by category so callers can write errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Category == e.Category
}

var (
	ErrServer     = &Error{Category: CategoryServer}
	ErrValidation = &Error{Category: CategoryValidation}
	ErrConflict   = &Error{Category: CategoryConflict}
	ErrNotFound   = &Error{Category: CategoryNotFound}
	ErrNotReady   = &Error{Category: CategoryNotReady}
)

func NewValidationError(op, detail string) *Error {
	return &Error{Category: CategoryValidation, Op: op, Detail: detail}
}

func NewNotReadyError(op, detail string) *Error {
	return &Error{Category: CategoryNotReady, Op: op, Detail: detail}
}

// Detail extracts the display string from any error, preferring the server's
// detail over the formatted error.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) && te.Detail != "" {
		return te.Detail
	}
	return err.Error()
}

// CategoryOf returns CategoryServer for errors that did not come from a Client.
func CategoryOf(err error) Category {
	var te *Error
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryServer
}

// credentialsOp marks operations where a rejected request means the store
// cannot serve credentials yet rather than bad input.
const credentialsOp = "get admin credentials"

func categorize(op string, status int) Category {
	switch status {
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if op == credentialsOp {
			return CategoryNotReady
		}
		return CategoryValidation
	case http.StatusConflict, http.StatusForbidden:
		if op == credentialsOp {
			return CategoryNotReady
		}
		if status == http.StatusConflict {
			return CategoryConflict
		}
	}
	return CategoryServer
}

// parseDetail understands both {"detail": "msg"} and the validation form
// {"detail": [{"msg": "..."}]}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(envelope.Detail)
}
