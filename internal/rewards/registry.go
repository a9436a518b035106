package rewards

import (
	"encoding/json"

	"github.com/bardlex/poolsim/internal/registry"
)

// Registry keys of the built-in schemes.
const (
	SchemePPS   = "pps"
	SchemePPLNS = "pplns"
	SchemeQB    = "qb"
)

// Constructor builds a scheme from its JSON arguments.
type Constructor func(args json.RawMessage) (Scheme, error)

var schemes = registry.New[Constructor]("reward scheme")

func init() {
	schemes.Register(SchemePPS, newPPSFromArgs)
	schemes.Register(SchemePPLNS, newPPLNSFromArgs)
	schemes.Register(SchemeQB, newQBFromArgs)
}

// Register makes a scheme available under name.
func Register(name string, ctor Constructor) {
	schemes.Register(name, ctor)
}

// New builds the scheme registered under name.
func New(name string, args json.RawMessage) (Scheme, error) {
	ctor, err := schemes.Lookup(name)
	if err != nil {
		return nil, err
	}
	return ctor(args)
}

// Names lists the registered schemes.
func Names() []string {
	return schemes.Names()
}
