package persistence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"citylibrary/internal/store"
)

func TestEncodeBook(t *testing.T) {
	line := EncodeBook(store.Book{ID: 1, Title: "Dune", Author: "Herbert", Category: "SciFi"})
	assert.Equal(t, "1,Dune,Herbert,SciFi,false", line)

	line = EncodeBook(store.Book{ID: 2, Title: "War, and Peace", Author: "Tolstoy", Category: "Classic", IsIssued: true})
	assert.Equal(t, "2,War  and Peace,Tolstoy,Classic,true", line)
}

func TestEncodeMember(t *testing.T) {
	assert.Equal(t, "3,Alice", EncodeMember(store.Member{ID: 3, Name: "Alice"}))
	assert.Equal(t, "4,Doe  John", EncodeMember(store.Member{ID: 4, Name: "Doe, John"}))
}

func TestDecodeBook(t *testing.T) {
	tests := []struct {
		name string
		line string
		want store.Book
		ok   bool
	}{
		{
			name: "valid",
			line: "1,Dune,Herbert,SciFi,true",
			want: store.Book{ID: 1, Title: "Dune", Author: "Herbert", Category: "SciFi", IsIssued: true},
			ok:   true,
		},
		{
			name: "fields are trimmed",
			line: " 2 , Emma ,  Austen , Classic , false ",
			want: store.Book{ID: 2, Title: "Emma", Author: "Austen", Category: "Classic"},
			ok:   true,
		},
		{
			name: "issued flag ignores case",
			line: "3,A,B,C,TRUE",
			want: store.Book{ID: 3, Title: "A", Author: "B", Category: "C", IsIssued: true},
			ok:   true,
		},
		{
			name: "unknown flag means available",
			line: "4,A,B,C,yes",
			want: store.Book{ID: 4, Title: "A", Author: "B", Category: "C"},
			ok:   true,
		},
		{
			name: "extra fields ignored",
			line: "5,A,B,C,true,extra",
			want: store.Book{ID: 5, Title: "A", Author: "B", Category: "C", IsIssued: true},
			ok:   true,
		},
		{name: "too few fields", line: "6,A,B,C", ok: false},
		{name: "non integer id", line: "x,A,B,C,false", ok: false},
		{name: "empty line", line: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeBook(tt.line)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeMember(t *testing.T) {
	m, ok := DecodeMember("7, Alice ")
	require.True(t, ok)
	assert.Equal(t, store.Member{ID: 7, Name: "Alice"}, m)

	_, ok = DecodeMember("7")
	assert.False(t, ok)

	_, ok = DecodeMember("seven,Alice")
	assert.False(t, ok)
}

// normalized is what a text field looks like after a save and load.
func normalized(s string) string {
	return strings.TrimSpace(sanitize(s))
}

func TestBookLineRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := store.Book{
			ID:       rapid.IntRange(1, 1<<30).Draw(t, "id"),
			Title:    rapid.String().Draw(t, "title"),
			Author:   rapid.String().Draw(t, "author"),
			Category: rapid.String().Draw(t, "category"),
			IsIssued: rapid.Bool().Draw(t, "issued"),
		}

		got, ok := DecodeBook(EncodeBook(b))
		if !ok {
			t.Fatalf("encoded book did not decode: %q", EncodeBook(b))
		}

		want := store.Book{
			ID:       b.ID,
			Title:    normalized(b.Title),
			Author:   normalized(b.Author),
			Category: normalized(b.Category),
			IsIssued: b.IsIssued,
		}
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})
}

func TestMemberLineRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := store.Member{
			ID:   rapid.IntRange(1, 1<<30).Draw(t, "id"),
			Name: rapid.String().Draw(t, "name"),
		}

		got, ok := DecodeMember(EncodeMember(m))
		if !ok {
			t.Fatalf("encoded member did not decode: %q", EncodeMember(m))
		}
		if got.ID != m.ID || got.Name != normalized(m.Name) {
			t.Fatalf("got %+v, want name %q", got, normalized(m.Name))
		}
	})
}
