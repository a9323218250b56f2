package visitors

import "hash/fnv"

var aliasColors = []string{
	"Amber", "Azure", "Crimson", "Cobalt", "Coral", "Emerald", "Indigo", "Ivory", "Jade", "Lilac",
	"Magenta", "Ochre", "Olive", "Onyx", "Pearl", "Ruby", "Saffron", "Scarlet", "Silver", "Teal",
}

var aliasBirds = []string{
	"Albatross", "Crane", "Falcon", "Finch", "Heron", "Ibis", "Kestrel", "Kingfisher", "Lark", "Magpie",
	"Osprey", "Owl", "Pelican", "Plover", "Puffin", "Raven", "Robin", "Swallow", "Swift", "Wren",
}

// Alias turns a fingerprint into a stable display name for click listings.
// Empty fingerprints render as "Anonymous".
func Alias(fingerprint string) string {
	if fingerprint == "" {
		return "Anonymous"
	}

	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	index := int(h.Sum32())

	color := aliasColors[index%len(aliasColors)]
	bird := aliasBirds[(index/len(aliasColors))%len(aliasBirds)]
	return color + " " + bird
}
