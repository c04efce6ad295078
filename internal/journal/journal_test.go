package journal_test

import (
	"context"
	"os"
	"testing"

	"github.com/qti-audio/agm/internal/journal"
)

func TestOpen_EmptyDSNReturnsNoOp(t *testing.T) {
	j, err := journal.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("Open(\"\"): %v", err)
	}
	defer j.Close()

	if err := j.RecordTransition(context.Background(), "sess-1", "OPENED", "PREPARED"); err != nil {
		t.Fatalf("no-op RecordTransition returned error: %v", err)
	}
	if err := j.RecordTopologyEdit(context.Background(), "sess-1", "connect_aif", "aif=3"); err != nil {
		t.Fatalf("no-op RecordTopologyEdit returned error: %v", err)
	}
}

// testDSN returns the test database DSN from the environment, or skips the
// test if AGM_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("AGM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AGM_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration test")
	}
	return dsn
}

func TestStore_RecordsTransitionsAndTopologyEdits(t *testing.T) {
	ctx := context.Background()
	dsn := testDSN(t)

	j, err := journal.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if err := j.RecordTransition(ctx, "sess-1", "CLOSED", "OPENED"); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	if err := j.RecordTopologyEdit(ctx, "sess-1", "connect_aif", "aif=3 connect=true"); err != nil {
		t.Fatalf("RecordTopologyEdit: %v", err)
	}
}
