package notestore

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Id prefixes.
const (
	categoryPrefix = "cat_"
	notePrefix     = "n_"
)

// newID returns prefix + base36 millisecond clock + 6 random hex characters.
func newID(prefix string) string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strconv.FormatInt(time.Now().UnixMilli(), 36) + rnd[:6]
}

// NewNoteID allocates a fresh note id.
func NewNoteID() string { return newID(notePrefix) }
