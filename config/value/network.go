package value

import (
	"fmt"
	"net"
	"regexp"
)

var reNumeric = regexp.MustCompile("^[0-9]+$")

// optional address (host?:port)

type Address string

func NewAddress(p *string, val string) *Address {
	*p = val

	return (*Address)(p)
}

// Set accepts a bare port number as shorthand for ":port".
func (s *Address) Set(val string) error {
	if reNumeric.MatchString(val) {
		val = ":" + val
	}

	*s = Address(val)
	return nil
}

func (s *Address) String() string {
	return string(*s)
}

func (s *Address) Validate() error {
	if len(string(*s)) == 0 {
		return nil
	}

	_, port, err := net.SplitHostPort(string(*s))
	if err != nil {
		return err
	}

	if !reNumeric.MatchString(port) {
		return fmt.Errorf("the port must be numerical")
	}

	return nil
}

func (s *Address) IsEmpty() bool {
	return len(string(*s)) == 0
}
