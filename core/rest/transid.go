package rest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransIDPrefix is the default prefix for generated transaction identifiers.
const TransIDPrefix = "FE"

// NewTransactionID generates a transaction identifier with the default prefix.
func NewTransactionID() string {
	return NewTransactionIDWithPrefix(TransIDPrefix)
}

// NewTransactionIDWithPrefix generates a transaction identifier of the form
// "<prefix>!<uuid>".
func NewTransactionIDWithPrefix(prefix string) string {
	return prefix + "!" + uuid.NewString()
}

// decorateURL appends the transaction identifier and current time, in
// milliseconds since epoch, to the request URL.
func decorateURL(rawURL, tid string) string {
	sep := "?"
	for _, r := range rawURL {
		if r == '?' {
			sep = "&"
			break
		}
	}
	return fmt.Sprintf("%s%seventId=%s&time=%d", rawURL, sep, tid, time.Now().UnixMilli())
}
