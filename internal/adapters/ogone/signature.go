package ogone

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strings"
)

// HashAlgorithm selects the digest used for the SHASIGN request signature
type HashAlgorithm string

const (
	HashSHA1   HashAlgorithm = "sha1"
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
)

// legacySignatureFields is the fixed field order signed by accounts created
// before 10 May 2010. This order is a contract with the processor; missing
// fields contribute an empty string.
var legacySignatureFields = []string{
	"ORDERID",
	"AMOUNT",
	"CURRENCY",
	"CARDNO",
	"PSPID",
	"OPERATION",
	"ALIAS",
}

// sign computes the hex-encoded, upper-cased SHASIGN value over the current
// parameter set. Two canonicalizations exist: the legacy seven-field string
// and the full sorted-parameter string, selected by allParameters.
func sign(p *paramSet, secret string, algorithm HashAlgorithm, allParameters bool) string {
	var toDigest string
	if allParameters {
		toDigest = fullSignatureString(p, secret)
	} else {
		toDigest = legacySignatureString(p, secret)
	}
	return strings.ToUpper(hexDigest(toDigest, algorithm))
}

func legacySignatureString(p *paramSet, secret string) string {
	var b strings.Builder
	for _, field := range legacySignatureFields {
		b.WriteString(p.get(field))
	}
	b.WriteString(secret)
	return b.String()
}

// fullSignatureString canonicalizes every current parameter as
// "KEY=value", case-insensitively sorted by key, joined by the secret, with
// the secret appended once more at the end.
func fullSignatureString(p *paramSet, secret string) string {
	keys := make([]string, 0, len(p.values))
	for key := range p.values {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToUpper(keys[i]) < strings.ToUpper(keys[j])
	})

	entries := make([]string, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, strings.ToUpper(key)+"="+p.get(key))
	}
	return strings.Join(entries, secret) + secret
}

func hexDigest(s string, algorithm HashAlgorithm) string {
	switch algorithm {
	case HashSHA256:
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	case HashSHA512:
		sum := sha512.Sum512([]byte(s))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha1.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}
}
