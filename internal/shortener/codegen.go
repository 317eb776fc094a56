package shortener

import (
	"crypto/sha256"
	"math/big"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// digestPrefixLen is the number of SHA-256 bytes a code is derived from.
const digestPrefixLen = 6

// CodeGenerator derives a code from an original URL. Implementations must be deterministic.
type CodeGenerator func(originalURL string) Code

// GenerateCode derives the code for originalURL: the first six bytes of its SHA-256 digest,
// base-62 encoded.
func GenerateCode(originalURL string) Code {
	sum := sha256.Sum256([]byte(originalURL))

	return Code(encodeBase62(sum[:digestPrefixLen]))
}

// encodeBase62 renders b as a big-endian base-62 number. Every leading zero byte except the
// last contributes a leading '0', so distinct prefixes never share an encoding.
func encodeBase62(b []byte) string {
	n := new(big.Int).SetBytes(b)
	base := big.NewInt(int64(len(base62Alphabet)))
	mod := new(big.Int)

	var digits []byte

	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, base62Alphabet[mod.Int64()])
	}

	if len(digits) == 0 {
		digits = append(digits, base62Alphabet[0])
	}

	for i := 0; i < len(b)-1 && b[i] == 0; i++ {
		digits = append(digits, base62Alphabet[0])
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}
