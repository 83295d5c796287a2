// Package idwords generates memorable instance names for discovery
// advertisements, so a host shows up as "amber-falcon" instead of an
// address.
package idwords

import (
	"crypto/rand"
	"encoding/binary"
	"strings"
)

var adjectives = []string{
	"amber", "bold", "calm", "deep", "eager", "fleet", "glad", "hazy",
	"iron", "jade", "keen", "lucid", "mellow", "noble", "opal", "pale",
	"quiet", "rapid", "solid", "tidy", "umber", "vivid", "warm", "young",
}

var nouns = []string{
	"falcon", "badger", "cedar", "delta", "ember", "fjord", "grove",
	"harbor", "island", "juniper", "kestrel", "lagoon", "meadow",
	"narwhal", "orchid", "pine", "quartz", "river", "summit", "thicket",
	"upland", "valley", "willow", "zephyr",
}

// GenerateName returns a random adjective-noun pair, "-" joined.
func GenerateName() string {
	b := make([]byte, 4)
	rand.Read(b)
	a := adjectives[binary.BigEndian.Uint16(b[0:])%uint16(len(adjectives))]
	n := nouns[binary.BigEndian.Uint16(b[2:])%uint16(len(nouns))]
	return a + "-" + n
}

// ValidName true if s is an adjective-noun pair from the lists.
func ValidName(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return false
	}
	return contains(adjectives, parts[0]) && contains(nouns, parts[1])
}

func contains(list []string, w string) bool {
	for _, x := range list {
		if x == w {
			return true
		}
	}
	return false
}
