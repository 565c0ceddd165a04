package card

import (
	"encoding/json"
	"fmt"
)

// Card identifies one of the eight playable cards.
//
// Encoding:
// - high 4 bits: kind (0: normal, 1: action)
// - low 4 bits: index within the kind (1-based)
type Card byte

type Kind byte

const (
	KindNormal Kind = 0
	KindAction Kind = 1
)

func (c Card) String() string {
	if name, ok := cardNames[c]; ok {
		return name
	}
	return "Invalid"
}

// Kind reports whether the card is a normal chant card or an action card.
func (c Card) Kind() Kind {
	return Kind(c >> 4)
}

func (c Card) IsAction() bool {
	return c.Kind() == KindAction
}

func (c Card) IsNormal() bool {
	return c != CardInvalid && c.Kind() == KindNormal
}

// IsValid reports whether c is one of the eight playable cards.
func (c Card) IsValid() bool {
	_, ok := cardNames[c]
	return ok
}

// ParseCard converts a wire name (e.g. "TACO", "GORILLA") to a Card.
func ParseCard(name string) (Card, error) {
	if c, ok := cardsByName[name]; ok {
		return c, nil
	}
	return CardInvalid, fmt.Errorf("invalid card name: %q", name)
}

// Cards travel as their names on the wire.

func (c Card) MarshalJSON() ([]byte, error) {
	if !c.IsValid() {
		return nil, fmt.Errorf("cannot marshal invalid card 0x%02x", byte(c))
	}
	return json.Marshal(c.String())
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseCard(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
