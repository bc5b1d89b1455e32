package value

import (
	"fmt"
	"slices"
	"strings"
)

// one of a fixed set of strings

type Enum struct {
	p       *string
	allowed []string
}

func NewEnum(p *string, val string, allowed ...string) *Enum {
	v := &Enum{
		p:       p,
		allowed: allowed,
	}

	*p = val

	return v
}

func (e *Enum) Set(val string) error {
	*e.p = strings.ToLower(strings.TrimSpace(val))
	return nil
}

func (e *Enum) String() string {
	return *e.p
}

func (e *Enum) Validate() error {
	if slices.Contains(e.allowed, *e.p) {
		return nil
	}

	return fmt.Errorf("'%s' is not one of: %s", *e.p, strings.Join(e.allowed, ", "))
}

func (e *Enum) IsEmpty() bool {
	return len(*e.p) == 0
}
