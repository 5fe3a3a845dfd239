// Package scan decides whether an object may be downloaded based on the
// verdict an external antivirus scanner records in the object's metadata.
package scan

import (
	"context"
	"errors"
	"strings"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/storage"
)

// Verdict is the scan state of an object.
type Verdict int

const (
	// VerdictPending covers objects not yet scanned, objects with no tag and
	// objects with a tag value this service does not recognize.
	VerdictPending Verdict = iota
	VerdictClean
	VerdictInfected
)

func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "clean"
	case VerdictInfected:
		return "infected"
	default:
		return "pending"
	}
}

// ParseVerdict maps a raw metadata value to a Verdict.
func ParseVerdict(raw string) Verdict {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "clean":
		return VerdictClean
	case "infected":
		return VerdictInfected
	default:
		return VerdictPending
	}
}

// Err returns nil when v permits a download and the matching error otherwise.
func (v Verdict) Err() error {
	switch v {
	case VerdictClean:
		return nil
	case VerdictInfected:
		return apperr.Infected()
	case VerdictPending:
		return apperr.Pending()
	default:
		return apperr.Pending()
	}
}

// Stater is the object-store call the gate needs.
type Stater interface {
	Stat(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

// Gate reads scan verdicts from object metadata. It never caches.
type Gate struct {
	store Stater
	tag   string
}

// NewGate creates a Gate reading the user metadata key tag.
func NewGate(store Stater, tag string) *Gate {
	if tag == "" {
		tag = "scan-status"
	}
	return &Gate{store: store, tag: strings.ToLower(tag)}
}

// Check returns the current verdict for key.
func (g *Gate) Check(ctx context.Context, key string) (Verdict, error) {
	if key == "" {
		return VerdictPending, apperr.Missing("key")
	}

	info, err := g.store.Stat(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return VerdictPending, apperr.NotFound("object not found")
	}
	if err != nil {
		return VerdictPending, apperr.Upstream("stat object", err)
	}

	return ParseVerdict(info.Metadata[g.tag]), nil
}

// Authorize returns nil only when key exists and is tagged clean.
func (g *Gate) Authorize(ctx context.Context, key string) (Verdict, error) {
	v, err := g.Check(ctx, key)
	if err != nil {
		return v, err
	}
	return v, v.Err()
}
