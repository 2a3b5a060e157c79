/*
version.go - VersionAssigner

PURPOSE:
  When a document or certificate is replaced, the new upload gets the next
  number in that file's version lineage:

    next = max(existing versions) + 1, or 1 when there are none

  Only versions > 0 count: missing, 0 and NaN are "absent", not version 0.
  Replaced and deleted records still count; history is never renumbered.

SCOPE:
  The lineage belongs to ONE file. Computing against every document in the
  system produces a plausible but wrong number.

    NextVersion(existing)             caller already filtered to one file
    NextVersionForFile(all, fileID)   filters internally (preferred)

  Writes use NextVersionForFile, which refuses to number a lineage it cannot
  fully scope. Read screens use SplitByFile, which sets malformed records
  aside so the rest of the table still renders.

SEE ALSO:
  - backoffice/lineage.go: Builds the replacement records
*/
package engine

// Versioned is implemented by records that belong to a version lineage.
type Versioned interface {
	LineageVersion() int
}

// FileScoped is a versioned record that points at its file.
type FileScoped interface {
	Versioned
	FileRelation() Relation
}

// NextVersion returns the next version for a history that the caller has
// already scoped to a single file.
func NextVersion[T Versioned](existing []T) int {
	highest := 0
	for _, r := range existing {
		if v := r.LineageVersion(); v > highest {
			highest = v
		}
	}
	return highest + 1
}

// NextVersionOf applies the same rule to bare version numbers.
func NextVersionOf(versions ...int) int {
	highest := 0
	for _, v := range versions {
		if v > highest {
			highest = v
		}
	}
	return highest + 1
}

// NextVersionForFile scopes the full collection to fileID and returns the
// next version. A malformed file relation anywhere in the collection is an
// error: the record might belong to this file and hold its highest version.
func NextVersionForFile[T FileScoped](all []T, fileID string) (int, error) {
	scoped, err := ScopeToFile(all, fileID)
	if err != nil {
		return 0, err
	}
	return NextVersion(scoped), nil
}

// ScopeToFile returns the records whose file relation resolves to fileID,
// in their original order.
func ScopeToFile[T FileScoped](all []T, fileID string) ([]T, error) {
	var scoped []T
	for _, r := range all {
		res, err := r.FileRelation().Resolve()
		if err != nil {
			return nil, err
		}
		if res.Present() && res.ID == fileID {
			scoped = append(scoped, r)
		}
	}
	return scoped, nil
}

// SplitByFile is the lenient form of ScopeToFile: records whose file relation
// is malformed are returned in malformed instead of failing the whole scope.
// Any of them may belong to fileID, so a version computed from scoped can be
// too low when malformed is not empty.
func SplitByFile[T FileScoped](all []T, fileID string) (scoped, malformed []T) {
	for _, r := range all {
		res, err := r.FileRelation().Resolve()
		if err != nil {
			malformed = append(malformed, r)
			continue
		}
		if res.Present() && res.ID == fileID {
			scoped = append(scoped, r)
		}
	}
	return scoped, malformed
}
