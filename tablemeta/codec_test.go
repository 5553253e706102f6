package tablemeta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apurbad/herddb/sop"
)

func buildSampleTable() *Table {
	t := NewTable("ts1", "orders", "11111111-1111-1111-1111-111111111111")
	_ = t.AddColumn(Column{Name: "id", Type: int32(TypeLong), SerialPosition: 1, AutoIncrement: true})
	_ = t.AddColumn(Column{Name: "customer", Type: int32(TypeString), SerialPosition: 2})
	_ = t.AddColumn(Column{
		Name: "status", Type: int32(TypeString), SerialPosition: 3,
		Flags: colFlagHasDefault, DefaultValue: []byte("pending"),
	})
	_ = t.SetPrimaryKey([]string{"id"})
	_ = t.AddForeignKey(ForeignKey{
		Name: "fk_customer", ParentTableID: "customers",
		Columns: []string{"customer"}, ParentColumns: []string{"id"},
	})
	t.MaxSerialPosition = 3
	return t
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	tbl := buildSampleTable()
	data, err := Serialize(tbl)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, tbl.Name, got.Name)
	require.Equal(t, tbl.Tablespace, got.Tablespace)
	require.Equal(t, tbl.UUID, got.UUID)
	require.Equal(t, tbl.PrimaryKey, got.PrimaryKey)
	require.Len(t, got.Columns, 3)
	require.Equal(t, "status", got.Columns[2].Name)
	require.True(t, got.Columns[2].HasDefault())
	require.Equal(t, []byte("pending"), got.Columns[2].DefaultValue)
	require.True(t, got.HasForeignKeys())
	require.Len(t, got.ForeignKeys, 1)
	require.Equal(t, "fk_customer", got.ForeignKeys[0].Name)
}

func TestDeserialize_RejectsUnsupportedVersion(t *testing.T) {
	var buf []byte
	buf = sop.WriteVarUint(buf, 2) // version != 1
	_, err := Deserialize(buf)
	require.Error(t, err)
	var corrupt *sop.CorruptionError
	require.ErrorAs(t, err, &corrupt)
}

func TestDeserialize_RejectsUnrecognizedFlags(t *testing.T) {
	var buf []byte
	buf = sop.WriteVarUint(buf, version1)
	buf = sop.WriteVarUint(buf, 2) // neither 0 nor HAS_FK
	_, err := Deserialize(buf)
	require.Error(t, err)
	var corrupt *sop.CorruptionError
	require.ErrorAs(t, err, &corrupt)
}

func TestTable_DropPrimaryKeyColumnRejected(t *testing.T) {
	tbl := buildSampleTable()
	before, err := Serialize(tbl)
	require.NoError(t, err)

	err = tbl.DropColumn("id")
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)

	after, err := Serialize(tbl)
	require.NoError(t, err)
	require.Equal(t, before, after, "table must be unchanged after a rejected ALTER")
}

func TestTable_DropUnknownColumnRejected(t *testing.T) {
	tbl := buildSampleTable()
	err := tbl.DropColumn("does_not_exist")
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)
}

func TestTable_DuplicateColumnRejected(t *testing.T) {
	tbl := buildSampleTable()
	err := tbl.AddColumn(Column{Name: "customer", Type: int32(TypeString)})
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)
}

func TestTable_SecondAutoIncrementColumnRejected(t *testing.T) {
	tbl := buildSampleTable()
	err := tbl.AddColumn(Column{Name: "seq", Type: int32(TypeLong), AutoIncrement: true})
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)
}

func TestTable_DuplicateForeignKeyNameRejected(t *testing.T) {
	tbl := buildSampleTable()
	err := tbl.AddForeignKey(ForeignKey{Name: "fk_customer", Columns: []string{"customer"}})
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)
}

func TestTable_InvalidPKTypeRejected(t *testing.T) {
	tbl := buildSampleTable()
	require.NoError(t, tbl.AddColumn(Column{Name: "blob", Type: int32(TypeAny)}))
	err := tbl.SetPrimaryKey([]string{"blob"})
	require.Error(t, err)
	var inv *sop.InvariantViolationError
	require.ErrorAs(t, err, &inv)
}
