// Package objecthdr defines ObjectHeader, the envelope every persisted
// object embeds (spec §3).
package objecthdr

import (
	"github.com/flywheel-sh/fcpcore/pkg/objectid"
	"github.com/flywheel-sh/fcpcore/pkg/provenance"
)

// Header carries the schema identity, owning zone, creation time, optional
// TTL, a provenance snapshot, and reference lists every persisted object
// embeds.
type Header struct {
	Schema      objectid.SchemaId   `json:"schema"`
	ZoneID      provenance.ZoneId   `json:"zone_id"`
	CreatedAt   int64               `json:"created_at"` // epoch-seconds
	TTLSecs     *int64              `json:"ttl_secs,omitempty"`
	Provenance  provenance.Record   `json:"provenance"`
	Refs        []objectid.ObjectId `json:"refs,omitempty"`
	ForeignRefs []objectid.ObjectId `json:"foreign_refs,omitempty"`
}

// Expired reports whether the header's TTL has elapsed as of nowSecs.
func (h Header) Expired(nowSecs int64) bool {
	if h.TTLSecs == nil {
		return false
	}
	return nowSecs >= h.CreatedAt+*h.TTLSecs
}

// AddRef appends id to Refs if not already present.
func (h Header) AddRef(id objectid.ObjectId) Header {
	for _, existing := range h.Refs {
		if existing == id {
			return h
		}
	}
	out := h
	out.Refs = append(append([]objectid.ObjectId(nil), h.Refs...), id)
	return out
}
