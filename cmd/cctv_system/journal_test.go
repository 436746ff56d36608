package main

import (
	"errors"
	"testing"

	"github.com/OCAP2/cctv/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestJournalStatus(t *testing.T) {
	assert.Equal(t, "postgres", journalStatus("postgres", nil))
	assert.Equal(t, "memory", journalStatus("", nil))
	assert.Equal(t, "memory", journalStatus("postgres", errors.New("connection refused")), "fallback reports the journal in use")
}

func TestCreateJournal_UnknownType(t *testing.T) {
	_, err := createJournal(config.JournalConfig{Type: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unknown journal type")
}
