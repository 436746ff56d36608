package parser

import (
	"fmt"

	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"
)

// ParseEntity parses an entity update:
// ref, name, side, alive, local, class, items.
func (p *Parser) ParseEntity(data []string) (core.Entity, error) {
	var e core.Entity
	if err := need(":CCTV:ENTITY:UPDATE:", data, 7); err != nil {
		return e, err
	}
	util.CleanArgs(data)

	var err error
	if e.Ref, err = parseRef(data[0]); err != nil {
		return e, err
	}
	e.Name = data[1]
	if e.Side, err = core.ParseSide(data[2]); err != nil {
		return e, err
	}
	if e.Alive, err = util.ParseSQFBool(data[3]); err != nil {
		return e, fmt.Errorf("alive: %w", err)
	}
	if e.Local, err = util.ParseSQFBool(data[4]); err != nil {
		return e, fmt.Errorf("local: %w", err)
	}
	e.Class = data[5]
	if e.Items, err = util.ParseSQFStringArray(data[6]); err != nil {
		return e, fmt.Errorf("items: %w", err)
	}
	return e, nil
}

// ParseRef parses the single entity ref of killed/removed/toggle commands.
func (p *Parser) ParseRef(data []string) (core.EntityRef, error) {
	if err := need("ref", data, 1); err != nil {
		return "", err
	}
	util.CleanArgs(data)
	return parseRef(data[0])
}
