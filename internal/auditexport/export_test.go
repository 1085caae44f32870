package auditexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"signet/internal/domain"
)

func sampleEntries() []domain.AuditLog {
	reqID := uuid.MustParse("8a4c2f10-0000-4000-8000-000000000001")
	docID := uuid.New()
	return []domain.AuditLog{
		{
			ID:            uuid.New(),
			DocumentID:    docID,
			ActorType:     domain.ActorOwner,
			ActorIdentity: "alice@example.com",
			EventType:     domain.AuditDocumentCreated,
			Metadata:      json.RawMessage(`{"title":"NDA","pages":2}`),
			CreatedAt:     time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:            uuid.New(),
			DocumentID:    docID,
			SignRequestID: &reqID,
			ActorType:     domain.ActorRecipient,
			ActorIdentity: "bob@example.com",
			EventType:     domain.AuditDeclined,
			Metadata:      json.RawMessage(`{"reason":"wrong terms","ip":"10.0.0.1"}`),
			CreatedAt:     time.Date(2025, 3, 2, 15, 4, 5, 0, time.UTC),
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" XLSX ", FormatXLSX, false},
		{"pdf", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "", formatMetadata(nil))
	assert.Equal(t, "", formatMetadata(json.RawMessage("null")))
	assert.Equal(t, "a=1; b=x; c=", formatMetadata(json.RawMessage(`{"b":"x","a":1,"c":null}`)))
	assert.Equal(t, `["x"]`, formatMetadata(json.RawMessage(`["x"]`)))
}

func TestExport_CSV(t *testing.T) {
	now := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	file, err := Export(FormatCSV, "Mutual NDA (v2)", sampleEntries(), now)
	require.NoError(t, err)

	assert.Equal(t, "Mutual_NDA_v2_audit_2025-03-05.csv", file.Name)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	require.True(t, bytes.HasPrefix(file.Data, BOM))

	rows, err := csv.NewReader(bytes.NewReader(file.Data[len(BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, columns, rows[0])
	assert.Equal(t, []string{"2025-03-01T09:00:00Z", "document_created", "owner", "alice@example.com", "", "pages=2; title=NDA"}, rows[1])
	assert.Equal(t, "8a4c2f10-0000-4000-8000-000000000001", rows[2][4])
	assert.Equal(t, "ip=10.0.0.1; reason=wrong terms", rows[2][5])
}

func TestExport_XLSX(t *testing.T) {
	file, err := Export(FormatXLSX, "NDA", sampleEntries(), time.Now())
	require.NoError(t, err)
	assert.Contains(t, file.Name, ".xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Timestamp", rows[0][0])
	assert.Equal(t, "declined", rows[2][1])
	assert.Equal(t, "bob@example.com", rows[2][3])
}

func TestExport_Unsupported(t *testing.T) {
	_, err := Export("pdf", "NDA", nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "Q1_Lease_Agreement", SanitizeFilename("Q1 Lease  Agreement!"))
	assert.Equal(t, "document", SanitizeFilename("???"))
	assert.Len(t, SanitizeFilename(string(bytes.Repeat([]byte("a"), 300))), 100)
}
