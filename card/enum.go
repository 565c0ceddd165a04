package card

const CardInvalid Card = 0

// Normal cards, in chant order.
const (
	CardTaco Card = iota + 0x01
	CardCat
	CardGoat
	CardCheese
	CardPizza
)

// Action cards.
const (
	CardGorilla Card = iota + 0x11
	CardNarwhal
	CardGroundhog
)

var cardNames = map[Card]string{
	CardTaco:      "TACO",
	CardCat:       "CAT",
	CardGoat:      "GOAT",
	CardCheese:    "CHEESE",
	CardPizza:     "PIZZA",
	CardGorilla:   "GORILLA",
	CardNarwhal:   "NARWHAL",
	CardGroundhog: "GROUNDHOG",
}

var cardsByName = map[string]Card{
	"TACO":      CardTaco,
	"CAT":       CardCat,
	"GOAT":      CardGoat,
	"CHEESE":    CardCheese,
	"PIZZA":     CardPizza,
	"GORILLA":   CardGorilla,
	"NARWHAL":   CardNarwhal,
	"GROUNDHOG": CardGroundhog,
}
