// Package domain models water-supply outage announcements published by the
// Belgrade waterworks (BVK) and the matching rules that decide which
// subscribers are alerted.
//
// # Data Source
//
// BVK publishes outages on a single announcements page as a stack of
// date-keyed accordion panels, one panel per calendar day. The panel text is
// free-form Serbian, but follows a loose convention:
//
//	"До 18:00 — Палилула: Улица 1, Улица 2. Звездара: Улица 3 ..."
//
// An optional "До HH:MM" prefix gives the expected end of the outage, and a
// fixed vocabulary of 17 Belgrade municipality names, each followed by a
// colon, partitions the rest into municipality-scoped address lists.
// Addresses within a list are comma-separated; ranges are written with
// dashes ("Улица 1 - Улица 5"). The list is usually followed by a water
// tanker schedule and share widgets, which are not outage data.
//
// # Incident Identity
//
// One logical incident is "this outage at this place from this source":
// the dedupe hash is SHA-1 of source|title|address_text. The description is
// deliberately excluded so that a re-published panel with refreshed wording
// updates the stored row in place instead of creating a duplicate. The hash
// backs the store's ON CONFLICT upsert, which keeps re-runs idempotent.
//
// # Retirement
//
// Incidents carry a per-cycle seen flag. A cycle resets all flags, every
// upsert sets the touched row's flag, and a final sweep deletes rows left
// unseen: an incident that stopped appearing in today's panel is considered
// resolved. There is no explicit close event from the source.
//
// # Script-invariant matching
//
// Both the source text and user subscriptions mix Serbian Cyrillic and
// Latin freely. All matching goes through a normalized form (Latin script,
// lowercased, with diacritics folded to ASCII) so "Палилула", "Palilula" and
// "palilula" compare equal. See [NormalizeForMatch].
package domain
