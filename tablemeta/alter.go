package tablemeta

import "github.com/apurbad/herddb/sop"

// NewTable returns an empty table ready for AddColumn/SetPrimaryKey calls.
func NewTable(tablespace, name, uuid string) *Table {
	return &Table{
		Version:    version1,
		Tablespace: tablespace,
		Name:       name,
		UUID:       uuid,
	}
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) isPrimaryKeyColumn(name string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == name {
			return true
		}
	}
	return false
}

// AddColumn appends c to the table, rejecting a duplicate column name, a
// second auto-increment column, or a primary-key column whose type cannot
// be ordered (spec §7 InvariantViolation; §8 scenario 6 is DropColumn's
// mirror image of this same family of checks).
func (t *Table) AddColumn(c Column) error {
	if t.columnIndex(c.Name) >= 0 {
		return &sop.InvariantViolationError{Reason: "duplicate column name: " + c.Name}
	}
	if c.AutoIncrement {
		for _, existing := range t.Columns {
			if existing.AutoIncrement {
				return &sop.InvariantViolationError{Reason: "table already has an auto-increment column: " + existing.Name}
			}
		}
	}
	if t.isPrimaryKeyColumn(c.Name) && !isValidPKType(ColumnType(c.Type)) {
		return &sop.InvariantViolationError{Reason: "column type cannot back a primary key: " + c.Name}
	}
	c.Version = version1
	if c.DefaultValue != nil {
		c.Flags |= colFlagHasDefault
	}
	t.Columns = append(t.Columns, c)
	if c.AutoIncrement {
		t.AutoIncrement = true
	}
	return nil
}

// DropColumn removes name from the table. Dropping a primary-key column is
// rejected (spec §8 scenario 6); dropping a column the table doesn't have is
// also rejected, as an "unknown column in ALTER" (spec §7).
func (t *Table) DropColumn(name string) error {
	idx := t.columnIndex(name)
	if idx < 0 {
		return &sop.InvariantViolationError{Reason: "unknown column: " + name}
	}
	if t.isPrimaryKeyColumn(name) {
		return &sop.InvariantViolationError{Reason: "cannot drop primary key column: " + name}
	}
	t.Columns = append(t.Columns[:idx], t.Columns[idx+1:]...)
	return nil
}

// SetPrimaryKey replaces the table's primary key, rejecting any column name
// ALTER doesn't recognize and any column whose type can't back a PK.
func (t *Table) SetPrimaryKey(columnNames []string) error {
	for _, name := range columnNames {
		idx := t.columnIndex(name)
		if idx < 0 {
			return &sop.InvariantViolationError{Reason: "unknown column: " + name}
		}
		if !isValidPKType(ColumnType(t.Columns[idx].Type)) {
			return &sop.InvariantViolationError{Reason: "column type cannot back a primary key: " + name}
		}
	}
	t.PrimaryKey = columnNames
	return nil
}

// AddForeignKey appends fk, rejecting a duplicate FK name or a reference to
// a column the table doesn't have.
func (t *Table) AddForeignKey(fk ForeignKey) error {
	for _, existing := range t.ForeignKeys {
		if existing.Name == fk.Name {
			return &sop.InvariantViolationError{Reason: "duplicate foreign key name: " + fk.Name}
		}
	}
	for _, col := range fk.Columns {
		if t.columnIndex(col) < 0 {
			return &sop.InvariantViolationError{Reason: "unknown column: " + col}
		}
	}
	t.ForeignKeys = append(t.ForeignKeys, fk)
	t.Flags |= flagHasFK
	return nil
}
