// Package forgeurl parses and verifies imgproxy-style request paths:
//
//	/<signature>/<option>/<option>/plain/<url>[@ext]
//	/<signature>/<option>/<base64url(url)>[.ext]
//
// The signature is either the literal "unsafe" or the base64url-no-pad
// encoding of HMAC-SHA256(key, salt || signed_path), where signed_path is
// the raw path starting at the slash before the first option segment.
package forgeurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// UnsafeToken is the signature placeholder for unsigned URLs.
const UnsafeToken = "unsafe"

var (
	ErrInvalidFormat = errors.New("invalid url format")
	ErrInvalidSource = errors.New("invalid source url")
)

// Option is one raw colon-separated directive from the path, not yet typed.
type Option struct {
	Name string
	Args []string
}

// Source describes the encoded source location before decoding.
type Source struct {
	// Plain is true for percent-encoded sources, false for base64url.
	Plain bool
	// Raw holds the still-encoded source segment.
	Raw string
	// Extension is the optional requested output extension suffix.
	Extension string
}

// Decode resolves the source into an absolute URL string.
func (s Source) Decode() (string, error) {
	if s.Plain {
		decoded, err := url.PathUnescape(s.Raw)
		if err != nil {
			return "", ErrInvalidSource
		}
		return decoded, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(s.Raw)
	if err != nil {
		return "", ErrInvalidSource
	}
	return string(decoded), nil
}

// ParsedURL is the decomposed request path.
type ParsedURL struct {
	// Signature is the first path segment, "unsafe" or a digest.
	Signature string
	// Options are the raw directives between signature and source.
	Options []Option
	// Source is the encoded source descriptor.
	Source Source
	// SignedPath is the byte-exact path covered by the signature.
	SignedPath string
}

// Parse splits a raw request path (with or without a leading slash) into its
// signature, option, and source parts. It performs no signature check and no
// option validation.
func Parse(path string) (*ParsedURL, error) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return nil, ErrInvalidFormat
	}

	signature := parts[0]
	rest := parts[1:]

	// The source starts at "plain" or at the first segment that carries no
	// colon; everything before it is an option token.
	sourceStart := len(rest)
	for i, seg := range rest {
		if seg == "plain" || !strings.Contains(seg, ":") {
			sourceStart = i
			break
		}
	}
	if sourceStart == len(rest) {
		return nil, ErrInvalidFormat
	}

	options := make([]Option, 0, sourceStart)
	for _, seg := range rest[:sourceStart] {
		segments := strings.Split(seg, ":")
		options = append(options, Option{Name: segments[0], Args: segments[1:]})
	}

	source, err := parseSource(rest[sourceStart:])
	if err != nil {
		return nil, err
	}

	return &ParsedURL{
		Signature:  signature,
		Options:    options,
		Source:     source,
		SignedPath: "/" + strings.Join(rest, "/"),
	}, nil
}

func parseSource(parts []string) (Source, error) {
	if len(parts) == 0 {
		return Source{}, ErrInvalidFormat
	}

	if parts[0] == "plain" {
		if len(parts) < 2 {
			return Source{}, ErrInvalidFormat
		}
		joined := strings.Join(parts[1:], "/")
		raw, ext := splitLast(joined, '@')
		return Source{Plain: true, Raw: raw, Extension: ext}, nil
	}

	joined := strings.Join(parts, "/")
	raw, ext := splitLast(joined, '.')
	return Source{Plain: false, Raw: raw, Extension: ext}, nil
}

func splitLast(s string, sep byte) (string, string) {
	if idx := strings.LastIndexByte(s, sep); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}

// Sign computes the base64url-no-pad HMAC-SHA256 digest over salt || path.
func Sign(key, salt []byte, path string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(salt)
	mac.Write([]byte(path))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented signature against the expected digest for path.
// The comparison is constant-time; malformed base64 never verifies.
func Verify(key, salt []byte, signature, path string) bool {
	presented, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(salt)
	mac.Write([]byte(path))
	return hmac.Equal(presented, mac.Sum(nil))
}
