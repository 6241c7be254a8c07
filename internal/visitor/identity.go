// Package visitor resolves an incoming request to the key its recently
// viewed history is stored under.
package visitor

import (
	"encoding/base64"
	"net"
	"net/http"
	"strings"
)

type Kind uint8

const (
	Anonymous Kind = iota
	Authenticated
)

func (k Kind) String() string {
	if k == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Key identifies a visitor. Kind selects the variant: Authenticated keys are
// addressed by UserID, Anonymous keys by Address.
//
// Address is filled for both variants. For an authenticated visitor it is the
// encoded source address of the same request, which the store needs for the
// login fallback.
type Key struct {
	Kind    Kind
	UserID  string
	Address string
}

func AuthenticatedKey(userID, address string) Key {
	return Key{Kind: Authenticated, UserID: userID, Address: address}
}

func AnonymousKey(address string) Key {
	return Key{Kind: Anonymous, Address: address}
}

func (k Key) IsAuthenticated() bool {
	return k.Kind == Authenticated
}

func (k Key) String() string {
	if k.IsAuthenticated() {
		return "user:" + k.UserID
	}
	return "anon:" + k.Address
}

// SessionProvider reports the authenticated user behind a request, if any.
type SessionProvider interface {
	UserID(r *http.Request) (string, bool)
}

// Resolver maps requests to keys. It has no side effects and never fails.
type Resolver struct {
	sessions   SessionProvider
	trustProxy bool
}

// NewResolver builds a Resolver. A nil sessions provider treats every visitor
// as anonymous. With trustProxy the first X-Forwarded-For hop is used as the
// source address instead of the connection peer.
func NewResolver(sessions SessionProvider, trustProxy bool) *Resolver {
	return &Resolver{sessions: sessions, trustProxy: trustProxy}
}

func (res *Resolver) Resolve(r *http.Request) Key {
	address := EncodeAddress(res.sourceAddress(r))
	if res.sessions != nil {
		if userID, ok := res.sessions.UserID(r); ok && userID != "" {
			return AuthenticatedKey(userID, address)
		}
	}
	return AnonymousKey(address)
}

func (res *Resolver) sourceAddress(r *http.Request) string {
	if res.trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// EncodeAddress is a reversible encoding of the raw address string, not a
// hash. Distinct addresses always produce distinct encodings.
func EncodeAddress(address string) string {
	return base64.StdEncoding.EncodeToString([]byte(address))
}

// DecodeAddress reverses EncodeAddress.
func DecodeAddress(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
