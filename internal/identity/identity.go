// Package identity resolves stable per-origin chat identities. Each origin
// (client network address) gets exactly one Identity; the username and avatar
// can be edited later, the tag never changes. Records are persisted in Redis
// and mirrored in an in-memory cache so that identity resolution keeps working
// when Redis is down.
package identity

import (
	"math/rand"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultAvatar is the placeholder avatar reference used when no palette is
// configured or a profile update clears the avatar.
const DefaultAvatar = "default"

// TagLength is the number of characters in a generated tag.
const TagLength = 8

// tagCharset is the alphabet for generated tags.
const tagCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MaxUsernameLen caps usernames submitted through profile updates.
const MaxUsernameLen = 24

// Palette is the fixed set of avatar references a new identity may be
// assigned when palette selection is enabled.
var Palette = []string{
	"indigo", "teal", "amber", "rose", "emerald", "slate", "violet", "orange",
}

// Identity is the durable profile associated with an origin.
type Identity struct {
	Username string `redis:"username" json:"username"`
	Tag      string `redis:"tag" json:"tag"`
	Avatar   string `redis:"avatar" json:"avatar"`
}

// randomUsername generates a username in the User<1000-9999> scheme.
func randomUsername() string {
	return "User" + strconv.Itoa(1000+rand.Intn(9000))
}

// randomTag generates a TagLength-character tag from the tag alphabet.
// Uniqueness is enforced by the caller via collision retry.
func randomTag() string {
	var b strings.Builder
	b.Grow(TagLength)
	for i := 0; i < TagLength; i++ {
		b.WriteByte(tagCharset[rand.Intn(len(tagCharset))])
	}
	return b.String()
}

// randomAvatar picks an avatar reference from the palette.
func randomAvatar() string {
	return Palette[rand.Intn(len(Palette))]
}

// sanitizeUsername trims and length-caps a submitted username. Over-length
// names are cut at a rune boundary so the result stays valid UTF-8. Returns
// the cleaned value and whether it is usable.
func sanitizeUsername(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || !utf8.ValidString(name) {
		return "", false
	}
	if len(name) > MaxUsernameLen {
		cut := MaxUsernameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
		if name == "" {
			return "", false
		}
	}
	return name, true
}
