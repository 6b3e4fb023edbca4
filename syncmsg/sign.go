package syncmsg

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"sync.evalgo.org/oplog"
)

// portion builds the signed string: the concatenation, in list order, of
// ("&" + row_id + "#" + content_type_id + "#" + command) for every
// operation.
func portion(ops []oplog.Operation) string {
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "&%d#%d#%s", op.RowID, op.ContentTypeID, op.Command)
	}
	return b.String()
}

// Sign computes the push signature for ops under the given node secret:
// hex(SHA-512(secret || portion(ops))).
func Sign(secret string, ops []oplog.Operation) string {
	h := sha512.New()
	h.Write([]byte(secret))
	h.Write([]byte(portion(ops)))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature with the server-known secret and
// compares it against key in constant time.
func Verify(secret string, ops []oplog.Operation, key string) bool {
	expected := Sign(secret, ops)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(key)) == 1
}
