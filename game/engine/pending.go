package engine

import (
	"encoding/json"
	"fmt"

	"github.com/wricardo/mcp-training/steamrails/game/hex"
)

// PendingKind tags the open sub-step, if any.
type PendingKind string

const (
	PendingNone      PendingKind = "none"
	KindProduction   PendingKind = "production"
	KindRedirect     PendingKind = "redirect"
	KindUrbanization PendingKind = "urbanization"
)

// Pending is a multi-step interaction owned by one player. A nil Pending
// means no interaction is open.
type Pending interface {
	Kind() PendingKind
	Owner() PlayerID
}

// PendingProduction holds the two cubes drawn for production.
type PendingProduction struct {
	Player        PlayerID `json:"player"`
	Cubes         [2]Color `json:"cubes"`
	SelectedSlots []int    `json:"selected_slots"`
}

func (p *PendingProduction) Kind() PendingKind { return KindProduction }
func (p *PendingProduction) Owner() PlayerID   { return p.Player }

// PendingRedirect lists the legal new edges for an unfinished tile.
type PendingRedirect struct {
	Player     PlayerID        `json:"player"`
	Coord      hex.Coord       `json:"coord"`
	Candidates []hex.Direction `json:"candidates"`
}

func (p *PendingRedirect) Kind() PendingKind { return KindRedirect }
func (p *PendingRedirect) Owner() PlayerID   { return p.Player }

// PendingUrbanization remembers the chosen new city tile until a town is
// picked.
type PendingUrbanization struct {
	Player PlayerID `json:"player"`
	TileID string   `json:"tile_id"`
}

func (p *PendingUrbanization) Kind() PendingKind { return KindUrbanization }
func (p *PendingUrbanization) Owner() PlayerID   { return p.Player }

// PendingEnvelope is the serialized form of Pending.
type PendingEnvelope struct {
	Kind         PendingKind          `json:"kind"`
	Production   *PendingProduction   `json:"production,omitempty"`
	Redirect     *PendingRedirect     `json:"redirect,omitempty"`
	Urbanization *PendingUrbanization `json:"urbanization,omitempty"`
}

// WrapPending converts a Pending into its envelope.
func WrapPending(p Pending) *PendingEnvelope {
	switch v := p.(type) {
	case nil:
		return nil
	case *PendingProduction:
		return &PendingEnvelope{Kind: KindProduction, Production: v}
	case *PendingRedirect:
		return &PendingEnvelope{Kind: KindRedirect, Redirect: v}
	case *PendingUrbanization:
		return &PendingEnvelope{Kind: KindUrbanization, Urbanization: v}
	}
	return nil
}

// Unwrap returns the Pending held by the envelope.
func (e *PendingEnvelope) Unwrap() (Pending, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case PendingNone, "":
		return nil, nil
	case KindProduction:
		if e.Production != nil {
			return e.Production, nil
		}
	case KindRedirect:
		if e.Redirect != nil {
			return e.Redirect, nil
		}
	case KindUrbanization:
		if e.Urbanization != nil {
			return e.Urbanization, nil
		}
	default:
		return nil, fmt.Errorf("unknown pending kind %q", e.Kind)
	}
	return nil, fmt.Errorf("pending %q has no payload", e.Kind)
}

type gameStateAlias GameState

// MarshalJSON writes Pending as a tagged envelope.
func (gs GameState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		gameStateAlias
		Pending *PendingEnvelope `json:"pending,omitempty"`
	}{gameStateAlias(gs), WrapPending(gs.Pending)})
}

// UnmarshalJSON restores Pending from its envelope.
func (gs *GameState) UnmarshalJSON(data []byte) error {
	aux := struct {
		*gameStateAlias
		Pending *PendingEnvelope `json:"pending,omitempty"`
	}{gameStateAlias: (*gameStateAlias)(gs)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p, err := aux.Pending.Unwrap()
	if err != nil {
		return err
	}
	gs.Pending = p
	return nil
}
