package order

import (
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var idPattern = regexp.MustCompile(`^CKT-[0-9]+-[0-9A-Z]+$`)

// NewID builds an order id of the form CKT-<unix millis>-<9 uppercase alphanumerics>.
func NewID(now time.Time) string {
	entropy := uuid.New()
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[int(entropy[i])%len(idAlphabet)]
	}
	return "CKT-" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + string(suffix)
}

// ValidID reports whether id looks like an order id. Seeded ids may carry longer suffixes.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
