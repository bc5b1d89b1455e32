package value

import (
	"github.com/datarhei/shelllogger/glob"
)

// array of glob patterns

type GlobList struct {
	StringList
}

func NewGlobList(p *[]string, val []string, separator string) *GlobList {
	return &GlobList{
		StringList: *NewStringList(p, val, separator),
	}
}

func (g *GlobList) Validate() error {
	_, err := glob.CompileSet(*g.p)
	return err
}
