package relational

import (
	"encoding/base64"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestEncodeColumnNull(t *testing.T) {
	if got := encodeColumn(pgtype.TextOID, nil); got != nil {
		t.Fatalf("encodeColumn(nil) = %v, want nil", got)
	}
}

func TestEncodeColumnBytea(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xff}
	got := encodeColumn(pgtype.ByteaOID, raw)
	want := base64.StdEncoding.EncodeToString(raw)
	if got != want {
		t.Fatalf("encodeColumn(bytea) = %v, want %v", got, want)
	}
}

// TestEncodeColumnUUID exercises the shape pgx/v5's Rows.Values() actually
// produces for a uuid column: a bare [16]byte, not a pgtype.UUID struct.
func TestEncodeColumnUUID(t *testing.T) {
	raw := [16]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00}
	got := encodeColumn(pgtype.UUIDOID, raw)
	want := "11223344-5566-7788-99aa-bbccddeeff00"
	if got != want {
		t.Fatalf("encodeColumn(uuid, [16]byte) = %v, want %v", got, want)
	}
}

func TestEncodeColumnUUIDFromPgtypeStruct(t *testing.T) {
	u := pgtype.UUID{
		Bytes: [16]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00},
		Valid: true,
	}
	got := encodeColumn(pgtype.UUIDOID, u)
	want := "11223344-5566-7788-99aa-bbccddeeff00"
	if got != want {
		t.Fatalf("encodeColumn(uuid, pgtype.UUID) = %v, want %v", got, want)
	}
}

func TestEncodeColumnBool(t *testing.T) {
	if got := encodeColumn(pgtype.BoolOID, true); got != true {
		t.Fatalf("encodeColumn(bool) = %v, want true", got)
	}
}

func TestEncodeColumnText(t *testing.T) {
	if got := encodeColumn(pgtype.TextOID, "hello"); got != "hello" {
		t.Fatalf("encodeColumn(text) = %v, want hello", got)
	}
}

func TestAdapterDisabledByDefault(t *testing.T) {
	a := &Adapter{}
	if a.Enabled() {
		t.Fatal("adapter with no pool should report disabled")
	}
}
