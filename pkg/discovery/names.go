package discovery

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// MaxOrdinal bounds ordinal allocation per base name.
const MaxOrdinal = 9999

// ValidateBaseName checks a device base name. Names must be non-empty,
// printable, free of whitespace, '/', '.' and '@', and short enough to
// fit into an instance name.
func ValidateBaseName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxBaseNameLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, MaxBaseNameLen)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) || strings.ContainsRune("/.@", r) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}

// FullName returns "base.ordinal".
func FullName(base string, ordinal int) string {
	return base + "." + strconv.Itoa(ordinal)
}

// SplitName splits a full name into base and ordinal.
func SplitName(full string) (base string, ordinal int, err error) {
	i := strings.LastIndexByte(full, '.')
	if i <= 0 || i == len(full)-1 {
		return "", 0, fmt.Errorf("%w: %q is not a full name", ErrInvalidName, full)
	}
	ordinal, err = strconv.Atoi(full[i+1:])
	if err != nil || ordinal < 1 {
		return "", 0, fmt.Errorf("%w: bad ordinal in %q", ErrInvalidName, full)
	}
	return full[:i], ordinal, nil
}

// DeriveID returns the device id for a full name: the first 64 bits of
// BLAKE2b-256 over the name.
func DeriveID(fullName string) uint64 {
	sum := blake2b.Sum256([]byte(fullName))
	return binary.BigEndian.Uint64(sum[:8])
}

// ConflictWinner returns the token that keeps a contested name.
func ConflictWinner(a, b string) string {
	if a <= b {
		return a
	}
	return b
}

// Allocator tracks which session owns each ordinal of each base name.
// It is safe for concurrent use.
type Allocator struct {
	mu     sync.Mutex
	owners map[string]map[int]string // base -> ordinal -> token
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{owners: make(map[string]map[int]string)}
}

// Allocate claims the lowest free ordinal of base for token.
func (a *Allocator) Allocate(base, token string) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	taken := a.owners[base]
	for ord := 1; ord <= MaxOrdinal; ord++ {
		if _, used := taken[ord]; !used {
			a.claimLocked(base, ord, token)
			return ord, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNamesExhausted, base)
}

// Observe records a name seen on the network. If the ordinal is already
// owned by another token the conflict rule decides. It returns the token
// that lost, or "" when there was no conflict.
func (a *Allocator) Observe(full, token string) (loser string, err error) {
	base, ord, err := SplitName(full)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.owners[base][ord]
	if !ok || cur == token {
		a.claimLocked(base, ord, token)
		return "", nil
	}
	winner := ConflictWinner(cur, token)
	a.claimLocked(base, ord, winner)
	if winner == cur {
		return token, nil
	}
	return cur, nil
}

// Release frees an ordinal if it is owned by token.
func (a *Allocator) Release(full, token string) {
	base, ord, err := SplitName(full)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owners[base][ord] == token {
		delete(a.owners[base], ord)
		if len(a.owners[base]) == 0 {
			delete(a.owners, base)
		}
	}
}

// Owner returns the token owning full.
func (a *Allocator) Owner(full string) (string, bool) {
	base, ord, err := SplitName(full)
	if err != nil {
		return "", false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	tok, ok := a.owners[base][ord]
	return tok, ok
}

func (a *Allocator) claimLocked(base string, ord int, token string) {
	m := a.owners[base]
	if m == nil {
		m = make(map[int]string)
		a.owners[base] = m
	}
	m[ord] = token
}
