package badger

import "fmt"

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organize the record types
// into logical namespaces. This prevents collisions, enables efficient range
// scans and keeps the database structure self-documenting.
//
// Data Type        Prefix  Key Format                       Value Type
// ==========================================================================
// Resource         "r:"    r:<resourceID>                   Resource (JSON)
// Content Item     "c:"    c:<len>:<resourceID>:<path>      ContentItem (JSON)
//
// Resources are point lookups by id. Content items are denormalized one
// entry per item under the owning resource's prefix, so listing a
// resource's items and cascade-deleting them are both a single range scan.
// Resource ids are caller-suppliable and may themselves contain ":", so
// composite keys length-prefix the id: two distinct ids always produce
// distinct scan prefixes, and the id of resource "proj" can never shadow the
// namespace of resource "proj:sub". Logical paths are normalized before they
// reach the store (no leading or duplicate slashes), so the path is safe to
// embed as the final key component.

const (
	resourcePrefix    = "r:"
	contentItemPrefix = "c:"
)

func resourceKey(id string) []byte {
	return []byte(resourcePrefix + id)
}

func contentItemKey(resourceID, path string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%s", contentItemPrefix, len(resourceID), resourceID, path))
}

func contentItemScanPrefix(resourceID string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", contentItemPrefix, len(resourceID), resourceID))
}
