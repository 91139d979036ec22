package datasource

// TableMetadata is a read-only snapshot of one table's structure, taken at
// build time. It is never persisted independently of a build.
type TableMetadata struct {
	TableName string
	Columns   []ColumnMetadata
}

// ColumnMetadata describes a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// PrimaryKeyColumns returns the names of the table's primary key columns in
// ordinal order.
func (t *TableMetadata) PrimaryKeyColumns() []string {
	var pks []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pks = append(pks, c.ColumnName)
		}
	}
	return pks
}
