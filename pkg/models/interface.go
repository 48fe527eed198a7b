package models

import (
	"context"
	"fmt"
)

// Agent is a plain text-completion model.
type Agent interface {
	Generate(context.Context, string) (any, error)
}

// textOf normalises the loosely typed Generate results into a string.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
