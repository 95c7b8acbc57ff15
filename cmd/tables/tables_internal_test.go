package tables

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/fatboystring/tenantkit/config"
)

func TestReaderOptions(t *testing.T) {
	c := qt.New(t)

	// No setting keeps the reader's default ignore list.
	c.Assert(readerOptions(&config.Config{}), qt.HasLen, 0)

	cfg := &config.Config{IgnoredTables: []string{"audit_log", "sessions"}}
	c.Assert(readerOptions(cfg), qt.HasLen, 1)
}
