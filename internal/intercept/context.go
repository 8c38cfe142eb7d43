// Package intercept decides, per intercepted binder call, whether a package
// manager query names a blocked package and rewrites it when it does.
package intercept

import (
	"errors"
	"fmt"

	"github.com/binderveil/binderveil/internal/blocklist"
	"github.com/binderveil/binderveil/internal/parcel"
)

// MatchStrategy selects how the package name is located in a transaction.
type MatchStrategy int

const (
	// MatchForward extracts the identifier after the envelope and scans the
	// blocklist for it.
	MatchForward MatchStrategy = iota
	// MatchTail compares entries with the zero-trimmed end of the buffer and
	// falls back to searching the argument region.
	MatchTail
)

// ParseMatchStrategy accepts "forward" or "tail".
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch s {
	case "", "forward":
		return MatchForward, nil
	case "tail":
		return MatchTail, nil
	}
	return 0, fmt.Errorf("invalid match strategy %q", s)
}

func (m MatchStrategy) String() string {
	if m == MatchTail {
		return "tail"
	}
	return "forward"
}

// Context is the state shared by every intercepted call. It is built once
// before hooks are committed and never modified afterwards.
type Context struct {
	blocklist *blocklist.Blocklist
	validator parcel.Validator
	strategy  MatchStrategy
}

// NewContext freezes the blocklist and decoding options for the dispatcher.
func NewContext(bl *blocklist.Blocklist, v parcel.Validator, strategy MatchStrategy) (*Context, error) {
	if bl == nil || bl.Len() == 0 {
		return nil, errors.New("intercept: blocklist is required")
	}
	if !v.Shape.Valid() {
		return nil, fmt.Errorf("intercept: invalid envelope shape %d", int(v.Shape))
	}
	if len(v.Opcodes) > 0 {
		codes := make(map[uint32]struct{}, len(v.Opcodes))
		for c := range v.Opcodes {
			codes[c] = struct{}{}
		}
		v.Opcodes = codes
	}
	return &Context{blocklist: bl, validator: v, strategy: strategy}, nil
}

// Blocklist returns the frozen blocklist.
func (c *Context) Blocklist() *blocklist.Blocklist { return c.blocklist }

// Shape returns the envelope shape in use.
func (c *Context) Shape() parcel.Shape { return c.validator.Shape }

// Strategy returns the match strategy in use.
func (c *Context) Strategy() MatchStrategy { return c.strategy }

// Outcome is how the dispatcher handled one call.
type Outcome string

const (
	// OutcomeSkipped: not a transaction command.
	OutcomeSkipped Outcome = "skipped"
	// OutcomePassthrough: not a package manager call.
	OutcomePassthrough Outcome = "passthrough"
	// OutcomeMalformed: envelope valid but the argument could not be decoded.
	OutcomeMalformed Outcome = "malformed"
	// OutcomeAllowed: package name not blocked.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeRedacted: package name blocked and the call rewritten.
	OutcomeRedacted Outcome = "redacted"
)

// Decision is the result of inspecting one transaction payload.
type Decision struct {
	Outcome Outcome
	Code    uint32
	Match   blocklist.MatchResult
	// Name is the blocked package name when the call was redacted.
	Name string
}

// Inspect decodes data and matches it against the blocklist. It never
// modifies data.
func (c *Context) Inspect(code uint32, data []byte) Decision {
	dec := Decision{Outcome: OutcomePassthrough, Code: code}
	if !c.validator.AcceptsCode(code) {
		return dec
	}
	cur, ok := c.validator.Open(data)
	if !ok {
		return dec
	}

	var res blocklist.MatchResult
	switch c.strategy {
	case MatchTail:
		res = c.blocklist.MatchTail(data)
		if !res.Matched {
			start := cur.Offset()
			res = c.blocklist.Search(data[start:])
			if res.Matched {
				res.Offset += start
			}
		}
	default:
		id, err := parcel.Extract(cur)
		if err != nil {
			dec.Outcome = OutcomeMalformed
			return dec
		}
		if id.Empty() {
			// Already truncated, or nothing to look up.
			dec.Outcome = OutcomeAllowed
			return dec
		}
		res = c.blocklist.Match(id)
	}

	dec.Match = res
	if res.Matched {
		dec.Outcome = OutcomeRedacted
		dec.Name = c.blocklist.Name(res.Entry)
	} else {
		dec.Outcome = OutcomeAllowed
	}
	return dec
}
