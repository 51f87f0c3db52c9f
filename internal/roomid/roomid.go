// Package roomid generates memorable interview room ids.
package roomid

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Generate returns an id such as "greedy-golang-merge-trie".
func Generate() string {
	lists := [][]string{adjectives, languages, verbs, structures}
	words := make([]string, len(lists))
	for i, list := range lists {
		words[i] = list[randomIndex(len(list))]
	}
	return strings.Join(words, "-")
}

func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("roomid: failed to read random source: " + err.Error())
	}
	return int(n.Int64())
}
