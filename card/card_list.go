package card

// CardList is an ordered pile of cards. Index 0 is the front: for a hand it
// is the next card to flip, for the table pile the oldest flipped card.
type CardList []Card

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

func (ds CardList) Count() int {
	return len(ds)
}

// Top returns the most recently added card, or CardInvalid when empty.
func (ds CardList) Top() Card {
	if len(ds) == 0 {
		return CardInvalid
	}
	return ds[len(ds)-1]
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

// PopFront removes and returns the front card.
func (ds *CardList) PopFront() Card {
	if len(*ds) == 0 {
		return CardInvalid
	}
	c := (*ds)[0]
	*ds = (*ds)[1:]
	return c
}

// Clone returns an independent copy.
func (ds CardList) Clone() CardList {
	if ds == nil {
		return nil
	}
	out := make(CardList, len(ds))
	copy(out, ds)
	return out
}
