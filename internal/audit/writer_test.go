package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-platform/gatekeeper/internal/logging"
	"github.com/pathlight-platform/gatekeeper/internal/models"
	"github.com/pathlight-platform/gatekeeper/internal/repository"
)

// failingRepository rejects every insert; the remaining methods are unused
// by the writer.
type failingRepository struct {
	repository.Repository
}

func (f *failingRepository) InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	return errors.New("connection refused")
}

func TestWriter_Write(t *testing.T) {
	repo := repository.NewInMemoryRepository()
	writer := NewWriter("test-secret", repo, logging.Default())
	actor := "user-123"

	result := writer.Write(context.Background(), Record{
		Action:     models.ActionLogin,
		Resource:   "session",
		ResourceID: "sess-1",
		Details:    map[string]interface{}{"method": "password"},
		Severity:   models.SeverityLow,
		Category:   models.CategoryAuthentication,
	}, &actor, "10.0.0.1", "Mozilla/5.0")

	require.True(t, result.Stored)
	entry := result.Entry
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Equal(t, &actor, entry.ActorID)
	assert.Equal(t, models.ActionLogin, entry.Action)
	assert.Equal(t, "10.0.0.1", entry.IPAddress)
	assert.NotEmpty(t, entry.Signature)

	logs, total, err := repo.QueryAuditEntries(context.Background(), models.AuditQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, entry.ID, logs[0].ID)
}

func TestWriter_DefaultsSeverityAndCategory(t *testing.T) {
	writer := NewWriter("test-secret", repository.NewInMemoryRepository(), logging.Default())

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionRead,
		Resource: "profile",
	}, nil, "10.0.0.1", "")

	assert.Equal(t, models.SeverityLow, result.Entry.Severity)
	assert.Equal(t, models.CategorySystemAccess, result.Entry.Category)
	assert.Nil(t, result.Entry.ActorID)
}

func TestWriter_TruncatesUserAgent(t *testing.T) {
	writer := NewWriter("test-secret", repository.NewInMemoryRepository(), logging.Default())
	longUA := strings.Repeat("x", userAgentMaxLen+200)

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionRead,
		Resource: "profile",
	}, nil, "10.0.0.1", longUA)

	assert.Len(t, result.Entry.UserAgent, userAgentMaxLen)
}

func TestWriter_TruncatesUserAgentOnRuneBoundary(t *testing.T) {
	writer := NewWriter("test-secret", repository.NewInMemoryRepository(), logging.Default())
	// The two-byte rune straddles the byte cap; a byte-wise cut would leave
	// invalid UTF-8 and the storage layer would reject the entry.
	straddledUA := strings.Repeat("a", userAgentMaxLen-1) + "é" + strings.Repeat("b", 50)

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionRead,
		Resource: "profile",
	}, nil, "10.0.0.1", straddledUA)

	assert.True(t, result.Stored)
	assert.True(t, utf8.ValidString(result.Entry.UserAgent))
	assert.LessOrEqual(t, len(result.Entry.UserAgent), userAgentMaxLen)
	assert.Equal(t, strings.Repeat("a", userAgentMaxLen-1), result.Entry.UserAgent)
}

func TestWriter_SanitizesDetails(t *testing.T) {
	writer := NewWriter("test-secret", repository.NewInMemoryRepository(), logging.Default())

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionValidationFailed,
		Resource: "audit",
		Details:  map[string]interface{}{"bad key!": `it's; "quoted"`},
	}, nil, "10.0.0.1", "")

	assert.Equal(t, map[string]interface{}{"badkey": "its quoted"}, result.Entry.Details)
}

func TestWriter_StorageFailureDoesNotPropagate(t *testing.T) {
	writer := NewWriter("test-secret", &failingRepository{}, logging.Default())

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionLogin,
		Resource: "session",
	}, nil, "10.0.0.1", "")

	// The caller still gets a signed entry; only the Stored flag reports the drop.
	assert.False(t, result.Stored)
	assert.NotNil(t, result.Entry)
	assert.NotEmpty(t, result.Entry.Signature)
}

func TestWriter_Verify(t *testing.T) {
	writer := NewWriter("test-secret", repository.NewInMemoryRepository(), logging.Default())
	actor := "user-123"

	result := writer.Write(context.Background(), Record{
		Action:   models.ActionUpdate,
		Resource: "application",
	}, &actor, "10.0.0.1", "")
	entry := *result.Entry

	assert.True(t, writer.Verify(&entry))

	t.Run("detects actor tampering", func(t *testing.T) {
		tampered := entry
		other := "user-999"
		tampered.ActorID = &other
		assert.False(t, writer.Verify(&tampered))
	})

	t.Run("detects action tampering", func(t *testing.T) {
		tampered := entry
		tampered.Action = models.ActionDelete
		assert.False(t, writer.Verify(&tampered))
	})

	t.Run("detects signature swap", func(t *testing.T) {
		tampered := entry
		tampered.Signature = strings.Repeat("0", len(entry.Signature))
		assert.False(t, writer.Verify(&tampered))
	})

	t.Run("different key fails verification", func(t *testing.T) {
		otherWriter := NewWriter("other-secret", repository.NewInMemoryRepository(), logging.Default())
		assert.False(t, otherWriter.Verify(&entry))
	})
}
