// internal/persistence/codec.go
package persistence

import (
	"fmt"
	"strconv"
	"strings"

	"citylibrary/internal/store"
)

const (
	bookFields   = 5
	memberFields = 2
)

// Commas and line breaks would split a record, so each becomes a single space.
// The console never produces line breaks; only commas are lost in practice.
var sanitizer = strings.NewReplacer(",", " ", "\r", " ", "\n", " ")

func sanitize(s string) string {
	return sanitizer.Replace(s)
}

// EncodeBook renders b as id,title,author,category,isIssued.
func EncodeBook(b store.Book) string {
	return fmt.Sprintf("%d,%s,%s,%s,%t",
		b.ID,
		sanitize(b.Title),
		sanitize(b.Author),
		sanitize(b.Category),
		b.IsIssued,
	)
}

// EncodeMember renders m as id,name.
func EncodeMember(m store.Member) string {
	return fmt.Sprintf("%d,%s", m.ID, sanitize(m.Name))
}

// DecodeBook parses a book line. ok is false for a malformed line.
func DecodeBook(line string) (store.Book, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < bookFields {
		return store.Book{}, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return store.Book{}, false
	}
	return store.Book{
		ID:       id,
		Title:    strings.TrimSpace(parts[1]),
		Author:   strings.TrimSpace(parts[2]),
		Category: strings.TrimSpace(parts[3]),
		IsIssued: strings.EqualFold(strings.TrimSpace(parts[4]), "true"),
	}, true
}

// DecodeMember parses a member line. ok is false for a malformed line.
func DecodeMember(line string) (store.Member, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < memberFields {
		return store.Member{}, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return store.Member{}, false
	}
	return store.Member{
		ID:   id,
		Name: strings.TrimSpace(parts[1]),
	}, true
}
