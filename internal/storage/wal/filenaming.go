package wal

// ============================================================================
// Journal File Naming
// Purpose: Encode/decode "{name}-journal-{NNN}.dat" and join it against a
// directory for every journal file this package creates or enumerates
// ============================================================================

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const journalExt = "dat"

// EncodeJournalName builds the on-disk file name for journal num belonging
// to a WAL named name: "{name}-journal-{num:03}.dat". num is zero-padded to
// at least 3 digits.
func EncodeJournalName(name string, num int) string {
	return fmt.Sprintf("%s-journal-%03d.%s", name, num, journalExt)
}

// DecodeJournalName parses a file name produced by EncodeJournalName,
// returning the WAL name and journal number it encodes. ok is false if
// fileName does not match the expected pattern. WAL names themselves may
// contain dashes, so the split works from the right: extension, number,
// literal "journal", and everything remaining is the name.
func DecodeJournalName(fileName string) (name string, num int, ok bool) {
	base := strings.TrimSuffix(fileName, "."+journalExt)
	if base == fileName {
		return "", 0, false
	}
	parts := strings.Split(base, "-")
	n := len(parts)
	if n < 3 {
		return "", 0, false
	}
	if parts[n-2] != "journal" {
		return "", 0, false
	}
	num, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return "", 0, false
	}
	name = strings.Join(parts[:n-2], "-")
	if name == "" {
		return "", 0, false
	}
	return name, num, true
}

// NextJournalName returns the file name of the journal that follows num for
// the given WAL name.
func NextJournalName(name string, num int) string {
	return EncodeJournalName(name, num+1)
}

// JournalPath joins dir and the encoded journal file name.
func JournalPath(dir, name string, num int) string {
	return filepath.Join(dir, EncodeJournalName(name, num))
}
