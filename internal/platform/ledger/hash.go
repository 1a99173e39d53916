package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// ComputeSelfHash returns the hex SHA-256 over the canonical serialization of
// an entry's fields plus the previous entry's hash. Fields are serialized in
// a fixed order, each length-prefixed so free-form values containing the
// separator cannot shift content across field boundaries. The hash
// deliberately excludes ID and CreatedAt: those are assigned by storage, and
// recomputing the hash from stored fields must reproduce the stored value
// exactly.
func ComputeSelfHash(e *Entry) string {
	prev := ""
	if e.HashPrev != nil {
		prev = *e.HashPrev
	}
	actorID := ""
	if e.ActorID != nil {
		actorID = *e.ActorID
	}

	fields := [...]string{
		e.ChainKey,
		strconv.FormatInt(e.Seq, 10),
		string(e.Category),
		e.Action,
		string(e.Status),
		string(e.ActorType),
		actorID,
		e.ActorDisplay,
		e.EntityType,
		e.EntityID,
		e.Summary,
		canonicalJSON(e.Metadata),
		canonicalJSON(e.Diff),
		prev,
	}

	var msg strings.Builder
	for _, f := range fields {
		msg.WriteString(strconv.Itoa(len(f)))
		msg.WriteByte(':')
		msg.WriteString(f)
		msg.WriteByte('|')
	}

	sum := sha256.Sum256([]byte(msg.String()))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON serializes a payload deterministically. encoding/json sorts
// map keys, which is the only ordering freedom JSON-shaped payloads have.
// A nil payload serializes to the empty string so it is distinguishable from
// an empty object.
func canonicalJSON(v map[string]any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		// Payloads reach here already round-tripped through the redaction
		// walker, so this only fires on non-JSON values smuggled into the
		// map. Hash their error text rather than dropping them silently.
		return "!" + err.Error()
	}
	return string(b)
}
