package parser

import (
	"fmt"

	"github.com/OCAP2/cctv/internal/util"
	"github.com/OCAP2/cctv/pkg/core"
)

// ParseMenuRequest parses observer ref, observer side, isZeus, target ref.
func (p *Parser) ParseMenuRequest(data []string) (MenuRequest, error) {
	var req MenuRequest
	if err := need(":CCTV:MENU:", data, 4); err != nil {
		return req, err
	}
	util.CleanArgs(data)

	var err error
	if req.Observer.Ref, err = parseRef(data[0]); err != nil {
		return req, fmt.Errorf("observer: %w", err)
	}
	if req.Observer.Side, err = core.ParseSide(data[1]); err != nil {
		return req, err
	}
	if req.Observer.IsZeus, err = util.ParseSQFBool(data[2]); err != nil {
		return req, fmt.Errorf("isZeus: %w", err)
	}
	// a null target is answered with an empty menu
	req.Target = core.EntityRef(data[3])
	return req, nil
}

// ParseAction parses observer ref and entry id.
func (p *Parser) ParseAction(data []string) (ActionRequest, error) {
	var req ActionRequest
	if err := need(":CCTV:ACTION:", data, 2); err != nil {
		return req, err
	}
	util.CleanArgs(data)

	var err error
	if req.Observer, err = parseRef(data[0]); err != nil {
		return req, err
	}
	if data[1] == "" {
		return req, fmt.Errorf("empty action id")
	}
	req.ID = data[1]
	return req, nil
}

// ParseSyncAck parses topic, key, version.
func (p *Parser) ParseSyncAck(data []string) (SyncAck, error) {
	var ack SyncAck
	if err := need(":CCTV:SYNC:ACK:", data, 3); err != nil {
		return ack, err
	}
	util.CleanArgs(data)

	ack.Topic = data[0]
	ack.Key = data[1]
	v, err := parseUintFromFloat(data[2])
	if err != nil {
		return ack, fmt.Errorf("error converting version to uint: %w", err)
	}
	ack.Version = v
	return ack, nil
}

// ParseSide parses an optional single side argument. No argument means ANY.
func (p *Parser) ParseSide(data []string) (core.Side, error) {
	if len(data) == 0 {
		return core.SideAny, nil
	}
	util.CleanArgs(data)
	return core.ParseSide(data[0])
}
