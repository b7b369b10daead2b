package domain

import "github.com/samber/lo"

// aliases is the fixed pool of fake display names used in match rooms.
// Movie characters keep the tone playful while hiding real identities.
var aliases = []string{
	"Amélie Poulain",
	"Atticus Finch",
	"Clarice Starling",
	"Darth Vader",
	"Dorothy Gale",
	"Ellen Ripley",
	"Forrest Gump",
	"Frodo Baggins",
	"Han Solo",
	"Hermione Granger",
	"Indiana Jones",
	"Jack Sparrow",
	"James Bond",
	"Jason Bourne",
	"John McClane",
	"Katniss Everdeen",
	"Lara Croft",
	"Léon",
	"Marty McFly",
	"Mary Poppins",
	"Neo",
	"Norman Bates",
	"Princess Leia",
	"Rocky Balboa",
	"Sarah Connor",
	"Travis Bickle",
	"Trinity",
	"Tyler Durden",
	"Vito Corleone",
}

// RandomAlias draws a fake display name for a single message.
// Every message is drawn independently on purpose: a stable alias per
// user would let the peer build a profile across the conversation.
func RandomAlias() string {
	return lo.Sample(aliases)
}

// KnownAlias reports whether name belongs to the alias pool.
func KnownAlias(name string) bool {
	return lo.Contains(aliases, name)
}
