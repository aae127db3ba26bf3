package ingest

import (
	"testing"

	"contact-ingestion-db/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestRowHashStableAcrossRuns(t *testing.T) {
	row := model.ContactRow{RowNumber: 3, Email: "a@x.com", FirstName: "A", LastName: "B", Company: "Co"}

	first := RowHash(42, 3, row)
	second := RowHash(42, 3, row)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestRowHashNormalizesBeforeHashing(t *testing.T) {
	plain := model.ContactRow{Email: "a@x.com", FirstName: "A", LastName: "B", Company: "Co"}
	noisy := model.ContactRow{Email: " A@X.com ", FirstName: " A ", LastName: "B", Company: "Co "}

	assert.Equal(t, RowHash(1, 1, plain), RowHash(1, 1, noisy))
}

func TestRowHashDiscriminates(t *testing.T) {
	row := model.ContactRow{Email: "a@x.com", FirstName: "A", LastName: "B", Company: "Co"}
	changed := row
	changed.Company = "Other"

	assert.NotEqual(t, RowHash(1, 1, row), RowHash(2, 1, row), "different job")
	assert.NotEqual(t, RowHash(1, 1, row), RowHash(1, 2, row), "different position")
	assert.NotEqual(t, RowHash(1, 1, row), RowHash(1, 1, changed), "different content")
}

func TestGuardTracksStagedHashes(t *testing.T) {
	guard := NewGuard(map[string]struct{}{"aaa": {}})

	assert.True(t, guard.AlreadyProcessed("aaa"))
	assert.False(t, guard.AlreadyProcessed("bbb"))

	guard.Mark("bbb")
	assert.True(t, guard.AlreadyProcessed("bbb"))
}

func TestGuardNilSeed(t *testing.T) {
	guard := NewGuard(nil)
	assert.False(t, guard.AlreadyProcessed("aaa"))
}
