package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "medverify/pkg/domain-errors"
)

// TestParseIDs_Invariants validates the parsing invariant at trust boundaries:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseIDs_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDoctorID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseLogEntryID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseLogEntryID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID in any case", func(t *testing.T) {
		u := uuid.New()
		got, err := ParseDoctorID(strings.ToUpper(u.String()))
		require.NoError(t, err)
		assert.Equal(t, DoctorID(u), got)
		assert.Equal(t, u.String(), got.String())
	})
}

func TestTypeDistinction(t *testing.T) {
	doctorID := NewDoctorID()
	entryID := NewLogEntryID()

	// var _ DoctorID = entryID would not compile.
	assert.NotEqual(t, uuid.UUID(doctorID), uuid.UUID(entryID))
	assert.False(t, doctorID.IsNil())
	assert.True(t, LogEntryID{}.IsNil())
}
