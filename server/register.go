package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"sync.evalgo.org/oplog"
)

const (
	secretLength   = 128
	secretAlphabet = "0123456789" +
		"abcdefghijklmnopqrstuvwxyz" +
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
		"!#$%&()*+,-./:;<=>?@[]^_{|}~"
)

// RegisterDeps bundles what Register needs beyond the request itself.
type RegisterDeps struct {
	Store *oplog.Store
}

// Register implements the server register handler (spec.md §4.7):
// create a Node with a freshly generated secret and return it. The
// secret is returned exactly once, to the caller.
func Register(nodeID, registryUserID string, deps RegisterDeps) (*oplog.Node, error) {
	secret, err := generateSecret(secretLength)
	if err != nil {
		return nil, fmt.Errorf("server: register: generate secret: %w", err)
	}

	node := &oplog.Node{
		NodeID:         nodeID,
		Registered:     time.Now(),
		RegistryUserID: registryUserID,
		Secret:         secret,
	}
	if err := deps.Store.CreateNode(node); err != nil {
		return nil, fmt.Errorf("server: register: create node: %w", err)
	}
	return node, nil
}

func generateSecret(n int) (string, error) {
	alphabetLen := big.NewInt(int64(len(secretAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		out[i] = secretAlphabet[idx.Int64()]
	}
	return string(out), nil
}
