package uid

import (
	"hash/fnv"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates time-ordered numeric identifiers.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator whose node identity is derived from
// the host, so instances sharing a database keep distinct id spaces.
func NewSnowflake() (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID())
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique int64 identifier.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

// nodeID derives a stable node number from the machine id, falling back
// to the hostname when the machine id is unreadable.
func nodeID() int64 {
	seed := ""
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		seed = strings.TrimSpace(string(b))
	}
	if seed == "" {
		seed, _ = os.Hostname()
	}

	h := fnv.New32a()
	h.Write([]byte(seed))

	return int64(h.Sum32() % 1024)
}
