// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"fmt"
	"io"

	"github.com/dolthub/calcplanner/sql"
)

// Table represents an in-memory database table. Rows are spread over a
// fixed number of partitions in insertion order.
type Table struct {
	name       string
	schema     sql.Schema
	partitions [][]sql.Row
	insert     int
}

var _ sql.RowSource = (*Table)(nil)

// NewTable creates a new Table with the given name and schema.
func NewTable(name string, schema sql.Schema) *Table {
	return NewPartitionedTable(name, schema, 0)
}

// NewPartitionedTable creates a new Table with the given name, schema and number of partitions.
func NewPartitionedTable(name string, schema sql.Schema, numPartitions int) *Table {
	if numPartitions < 1 {
		numPartitions = 1
	}

	return &Table{
		name:       name,
		schema:     schema,
		partitions: make([][]sql.Row, numPartitions),
	}
}

// Name implements the sql.Nameable interface.
func (t *Table) Name() string {
	return t.name
}

// Schema implements the sql.Table interface.
func (t *Table) Schema() sql.Schema {
	return t.schema
}

// PartitionCount returns the number of partitions of the table.
func (t *Table) PartitionCount() int {
	return len(t.partitions)
}

// Insert a new row into the table. The row is converted to the column types
// of the table.
func (t *Table) Insert(ctx *sql.Context, row sql.Row) error {
	if err := t.schema.CheckRow(row); err != nil {
		return err
	}

	converted := make(sql.Row, len(row))
	for i, col := range t.schema {
		v, err := col.Type.Convert(row[i])
		if err != nil {
			return err
		}
		converted[i] = v
	}

	p := t.insert % len(t.partitions)
	t.partitions[p] = append(t.partitions[p], converted)
	t.insert++
	return nil
}

// RowIter implements the sql.RowSource interface.
func (t *Table) RowIter(ctx *sql.Context) (sql.RowIter, error) {
	return &tableIter{partitions: t.partitions}, nil
}

type tableIter struct {
	partitions [][]sql.Row
	partition  int
	pos        int
}

func (i *tableIter) Next(ctx *sql.Context) (sql.Row, error) {
	for i.partition < len(i.partitions) {
		rows := i.partitions[i.partition]
		if i.pos < len(rows) {
			row := rows[i.pos]
			i.pos++
			return row.Copy(), nil
		}
		i.partition++
		i.pos = 0
	}
	return nil, io.EOF
}

func (i *tableIter) Close(*sql.Context) error {
	i.partitions = nil
	return nil
}

func (t *Table) String() string {
	return t.name
}

func (t *Table) DebugString() string {
	p := sql.NewTreePrinter()
	_ = p.WriteNode("Table(%s)", t.name)
	var cols = make([]string, len(t.schema))
	for i, col := range t.schema {
		cols[i] = fmt.Sprintf("Column(%s, %s, nullable=%v)", col.Name, col.Type, col.Nullable)
	}
	_ = p.WriteChildren(cols...)
	return p.String()
}
