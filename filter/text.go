// File: filter/text.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package filter

import (
	"fmt"

	"github.com/momentics/hioload-net/api"
)

type text struct{}

// Text decodes frames to strings and encodes strings to bytes.
func Text() api.Filter { return text{} }

func (text) Decode(_ api.Session, msg any) (any, error) {
	switch v := msg.(type) {
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: text filter cannot decode %T", api.ErrInvalidArgument, msg)
	}
}

func (text) Encode(_ api.Session, msg any) (any, error) {
	if v, ok := msg.(string); ok {
		return []byte(v), nil
	}
	return msg, nil
}
