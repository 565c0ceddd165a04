package card

// ChantOrder is the sequence of normal cards players vocalize; the chant
// index advances through it modulo its length on every flip.
var ChantOrder = []Card{CardTaco, CardCat, CardGoat, CardCheese, CardPizza}

var NormalCards = []Card{CardTaco, CardCat, CardGoat, CardCheese, CardPizza}

var ActionCards = []Card{CardGorilla, CardNarwhal, CardGroundhog}

var AllCards = append(append([]Card{}, NormalCards...), ActionCards...)

const (
	normalCopies = 7
	actionCopies = 4
)

// DefaultDeck returns the standard 47-card deck:
// 7 copies of each normal card and 4 copies of each action card.
func DefaultDeck() []Card {
	deck := make([]Card, 0, len(NormalCards)*normalCopies+len(ActionCards)*actionCopies)
	for _, c := range NormalCards {
		for i := 0; i < normalCopies; i++ {
			deck = append(deck, c)
		}
	}
	for _, c := range ActionCards {
		for i := 0; i < actionCopies; i++ {
			deck = append(deck, c)
		}
	}
	return deck
}

// ChantWord returns the chant word for a chant index.
func ChantWord(chantIndex int) Card {
	return ChantOrder[chantIndex%len(ChantOrder)]
}
