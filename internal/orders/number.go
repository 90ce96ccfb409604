package orders

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const orderNumberDateLayout = "20060102"

// OrderNumberPrefix is the UTC date part shared by all orders of one day.
func OrderNumberPrefix(now time.Time) string {
	return now.UTC().Format(orderNumberDateLayout)
}

// NextOrderNumber builds YYYYMMDD-NNNN from the highest number already issued
// for the same day (empty if none). Two concurrent checkouts may compute the
// same value; the unique index on order_number rejects one and the store retries it.
func NextOrderNumber(now time.Time, lastForDay string) (string, error) {
	prefix := OrderNumberPrefix(now)
	seq := 0
	if lastForDay != "" {
		rest, ok := strings.CutPrefix(lastForDay, prefix+"-")
		if !ok {
			return "", fmt.Errorf("order number %q does not belong to %s", lastForDay, prefix)
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			return "", fmt.Errorf("parse order number %q: %w", lastForDay, err)
		}
		seq = n
	}
	return fmt.Sprintf("%s-%04d", prefix, seq+1), nil
}

const guestTokenBytes = 32

// NewGuestToken returns a URL-safe token with 256 bits of entropy.
func NewGuestToken() (string, error) {
	b := make([]byte, guestTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("guest token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
