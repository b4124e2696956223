package invite

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

// TokenAlphabet leaves out 0, O, 1, I, l, i and o so tokens survive being
// read aloud or copied by hand.
const TokenAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"

const (
	tokenGroups    = 4
	tokenGroupSize = 4
	tokenSeparator = "-"
)

var tokenPattern = regexp.MustCompile(`^[` + TokenAlphabet + `]{4}(-[` + TokenAlphabet + `]{4}){3}$`)

// GenerateToken returns a new random token such as "Hk7m-Q2xP-9aZr-WcD4"
func GenerateToken() (string, error) {
	upper := big.NewInt(int64(len(TokenAlphabet)))
	groups := make([]string, tokenGroups)
	for g := range groups {
		buf := make([]byte, tokenGroupSize)
		for i := range buf {
			n, err := rand.Int(rand.Reader, upper)
			if err != nil {
				return "", err
			}
			buf[i] = TokenAlphabet[n.Int64()]
		}
		groups[g] = string(buf)
	}
	return strings.Join(groups, tokenSeparator), nil
}

// NormalizeToken trims surrounding whitespace. Tokens are case sensitive.
func NormalizeToken(token string) string {
	return strings.TrimSpace(token)
}

// WellFormed reports whether token has the shape GenerateToken produces
func WellFormed(token string) bool {
	return tokenPattern.MatchString(token)
}
