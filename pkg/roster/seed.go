package roster

import "strconv"

var seedNames = [...]string{
	"Ada Lovelace", "Alan Turing", "Grace Hopper", "Edsger Dijkstra",
	"Barbara Liskov", "Donald Knuth", "Margaret Hamilton", "Ken Thompson",
	"Dennis Ritchie", "Frances Allen", "John McCarthy", "Radia Perlman",
	"Tony Hoare", "Shafi Goldwasser", "Niklaus Wirth", "Katherine Johnson",
	"Leslie Lamport", "Sophie Wilson", "Rob Pike", "Hedy Lamarr",
}

// Seed returns the fixed 20-entry roster used when no host is present. Ids
// run from "1" to "20"; seat labels cycle through rows A-D.
func Seed() []Entry {
	out := make([]Entry, len(seedNames))
	for i, name := range seedNames {
		row := string(rune('A' + i/5))
		out[i] = Entry{
			ID:          strconv.Itoa(i + 1),
			DisplayName: name,
			SeatLabel:   row + strconv.Itoa(i%5+1),
		}
	}
	return out
}
