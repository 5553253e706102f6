package tablemeta

import (
	"bytes"

	"github.com/apurbad/herddb/sop"
)

// Serialize encodes t per spec §6's binary layout, bit-exact.
func Serialize(t *Table) ([]byte, error) {
	var buf []byte
	buf = sop.WriteVarUint(buf, version1)
	buf = sop.WriteVarUint(buf, uint64(t.Flags))
	buf = sop.WriteUTF(buf, t.Tablespace)
	buf = sop.WriteUTF(buf, t.Name)
	buf = sop.WriteUTF(buf, t.UUID)
	buf = writeU8(buf, boolToU8(t.AutoIncrement))
	buf = sop.WriteVarInt(buf, int64(t.MaxSerialPosition))
	buf = writeU8(buf, byte(len(t.PrimaryKey)))
	for _, pk := range t.PrimaryKey {
		buf = sop.WriteUTF(buf, pk)
	}
	buf = sop.WriteVarInt(buf, int64(t.TableFlags))
	buf = sop.WriteVarInt(buf, int64(len(t.Columns)))
	for _, c := range t.Columns {
		buf = sop.WriteVarUint(buf, version1)
		buf = sop.WriteVarUint(buf, uint64(c.Flags))
		buf = sop.WriteUTF(buf, c.Name)
		buf = sop.WriteVarInt(buf, int64(c.Type))
		buf = sop.WriteVarInt(buf, int64(c.SerialPosition))
		if c.HasDefault() {
			buf = sop.WriteBytesArray(buf, c.DefaultValue)
		}
	}
	if t.HasForeignKeys() {
		buf = sop.WriteVarInt(buf, int64(len(t.ForeignKeys)))
		for _, fk := range t.ForeignKeys {
			buf = sop.WriteUTF(buf, fk.Name)
			buf = sop.WriteUTF(buf, fk.ParentTableID)
			buf = sop.WriteVarInt(buf, int64(len(fk.Columns)))
			for _, c := range fk.Columns {
				buf = sop.WriteUTF(buf, c)
			}
			for _, c := range fk.ParentColumns {
				buf = sop.WriteUTF(buf, c)
			}
			buf = sop.WriteVarInt(buf, int64(fk.OnUpdateAction))
			buf = sop.WriteVarInt(buf, int64(fk.OnDeleteAction))
		}
	}
	return buf, nil
}

// Deserialize is Serialize's inverse. It fails with a *sop.CorruptionError
// when version, flags, colVersion, or colFlags don't match a recognized
// value (spec §6 "Deserialization fails with 'corrupted table file' if...").
func Deserialize(data []byte) (*Table, error) {
	r := bytes.NewReader(data)

	version, err := sop.ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if version != version1 {
		return nil, &sop.CorruptionError{Reason: "unsupported table version"}
	}

	flags, err := sop.ReadVarUint(r)
	if err != nil {
		return nil, err
	}
	if flags != 0 && flags != flagHasFK {
		return nil, &sop.CorruptionError{Reason: "unrecognized table flags"}
	}

	t := &Table{Version: int64(version), Flags: int64(flags)}

	if t.Tablespace, err = sop.ReadUTF(r); err != nil {
		return nil, err
	}
	if t.Name, err = sop.ReadUTF(r); err != nil {
		return nil, err
	}
	if t.UUID, err = sop.ReadUTF(r); err != nil {
		return nil, err
	}
	autoInc, err := readU8(r)
	if err != nil {
		return nil, err
	}
	t.AutoIncrement = autoInc != 0

	maxSerial, err := sop.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	t.MaxSerialPosition = int32(maxSerial)

	pkCount, err := readU8(r)
	if err != nil {
		return nil, err
	}
	t.PrimaryKey = make([]string, pkCount)
	for i := range t.PrimaryKey {
		if t.PrimaryKey[i], err = sop.ReadUTF(r); err != nil {
			return nil, err
		}
	}

	tableFlags, err := sop.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	t.TableFlags = int32(tableFlags)

	colCount, err := sop.ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	t.Columns = make([]Column, colCount)
	for i := range t.Columns {
		c := &t.Columns[i]
		colVersion, err := sop.ReadVarUint(r)
		if err != nil {
			return nil, err
		}
		if colVersion != version1 {
			return nil, &sop.CorruptionError{Reason: "unsupported column version"}
		}
		colFlags, err := sop.ReadVarUint(r)
		if err != nil {
			return nil, err
		}
		if colFlags != 0 && colFlags != colFlagHasDefault {
			return nil, &sop.CorruptionError{Reason: "unrecognized column flags"}
		}
		c.Version, c.Flags = int64(colVersion), int64(colFlags)
		if c.Name, err = sop.ReadUTF(r); err != nil {
			return nil, err
		}
		typ, err := sop.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		c.Type = int32(typ)
		pos, err := sop.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		c.SerialPosition = int32(pos)
		if c.HasDefault() {
			if c.DefaultValue, err = sop.ReadBytesArray(r); err != nil {
				return nil, err
			}
		}
	}

	if t.HasForeignKeys() {
		fkCount, err := sop.ReadVarInt(r)
		if err != nil {
			return nil, err
		}
		t.ForeignKeys = make([]ForeignKey, fkCount)
		for i := range t.ForeignKeys {
			fk := &t.ForeignKeys[i]
			if fk.Name, err = sop.ReadUTF(r); err != nil {
				return nil, err
			}
			if fk.ParentTableID, err = sop.ReadUTF(r); err != nil {
				return nil, err
			}
			colCount, err := sop.ReadVarInt(r)
			if err != nil {
				return nil, err
			}
			fk.Columns = make([]string, colCount)
			for j := range fk.Columns {
				if fk.Columns[j], err = sop.ReadUTF(r); err != nil {
					return nil, err
				}
			}
			fk.ParentColumns = make([]string, colCount)
			for j := range fk.ParentColumns {
				if fk.ParentColumns[j], err = sop.ReadUTF(r); err != nil {
					return nil, err
				}
			}
			onUpdate, err := sop.ReadVarInt(r)
			if err != nil {
				return nil, err
			}
			fk.OnUpdateAction = int32(onUpdate)
			onDelete, err := sop.ReadVarInt(r)
			if err != nil {
				return nil, err
			}
			fk.OnDeleteAction = int32(onDelete)
		}
	}

	return t, nil
}

// writeU8/readU8 handle spec §6's two fixed single-byte fields
// (auto_increment, pkColumnCount). These are genuinely one raw byte, not a
// varint, so there is nothing for sop's varint helpers to do here.
func writeU8(buf []byte, b byte) []byte {
	return append(buf, b)
}

func readU8(r *bytes.Reader) (byte, error) {
	return r.ReadByte()
}

func boolToU8(b bool) byte {
	if b {
		return 1
	}
	return 0
}
