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

package plan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolthub/calcplanner/memory"
	"github.com/dolthub/calcplanner/sql"
	"github.com/dolthub/calcplanner/sql/expression"
	"github.com/dolthub/calcplanner/sql/expression/function"
	"github.com/dolthub/calcplanner/sql/plan"
	"github.com/dolthub/calcplanner/sql/program"
)

var (
	leftSchema = sql.Schema{
		{Name: "a", Type: sql.Int64},
		{Name: "b", Type: sql.Int64},
	}
	rightSchema = sql.Schema{
		{Name: "c", Type: sql.Text},
	}
)

func table(name string, schema sql.Schema) *plan.ResolvedTable {
	return plan.NewResolvedTable(memory.NewTable(name, schema))
}

func TestJoinSchema(t *testing.T) {
	require := require.New(t)
	left, right := table("l", leftSchema), table("r", rightSchema)
	cond := expression.NewLiteral(true, sql.Boolean)
	sys := sql.Schema{{Name: "rowid", Type: sql.Int64}}

	j := plan.NewJoinWithSystemFields(left, right, plan.JoinTypeLeftOuter, cond, sys)
	schema := j.Schema()
	require.Equal([]string{"rowid", "a", "b", "c"}, schema.Names())
	require.False(schema[1].Nullable)
	require.True(schema[3].Nullable)
	require.False(rightSchema[0].Nullable)

	require.Equal(
		"LeftOuterJoin(true) [rowid]\n"+
			" ├─ Table(l)\n"+
			" └─ Table(r)\n",
		j.String(),
	)

	_, err := j.WithChildren(left)
	require.True(sql.ErrInvalidChildrenNumber.Is(err))
}

func TestGroupBySchema(t *testing.T) {
	require := require.New(t)
	g := plan.NewGroupByWithSystemFields(
		[]int{0},
		[]int{1},
		[]plan.AggregateCall{{Func: "sum", Args: []int{0}, Type: sql.Int64, Name: "total"}},
		table("l", leftSchema),
	)

	require.Equal([]string{"a", "b", "total"}, g.Schema().Names())
	require.True(g.Schema()[2].Nullable)
	require.Equal(
		"GroupBy([0]; $1; sum($0) as total)\n"+
			" └─ Table(l)\n",
		g.String(),
	)
}

func TestSetOp(t *testing.T) {
	require := require.New(t)
	u := plan.NewUnion(false, table("l", leftSchema), table("l2", leftSchema))
	require.Equal(leftSchema, u.Schema())
	require.Len(u.Children(), 2)
	require.Equal(
		"Union all\n"+
			" ├─ Table(l)\n"+
			" └─ Table(l2)\n",
		u.String(),
	)

	_, err := u.WithChildren(table("l", leftSchema))
	require.True(sql.ErrInvalidChildrenNumber.Is(err))
}

func TestValues(t *testing.T) {
	require := require.New(t)
	v := plan.NewValues(leftSchema, sql.NewRow(int64(1), int64(2)), sql.NewRow(int64(3), int64(4)))
	require.Equal("Values((1, 2), (3, 4))", v.String())
	require.Equal(leftSchema, v.Schema())

	_, err := v.WithChildren(table("l", leftSchema))
	require.True(sql.ErrInvalidChildrenNumber.Is(err))
}

func TestInsertInto(t *testing.T) {
	require := require.New(t)
	dst := memory.NewTable("dst", leftSchema)
	i := plan.NewInsertInto(dst, table("l", leftSchema))
	require.Equal(plan.OkResultSchema, i.Schema())
	require.Equal("Insert(dst)\n └─ Table(l)\n", i.String())
}

func TestTableFunction(t *testing.T) {
	require := require.New(t)
	out := sql.Schema{{Name: "n", Type: sql.Int64}}
	args := []sql.Expression{expression.NewLiteral(int64(3), sql.Int64)}
	f := plan.NewTableFunction("sequence", args, out, table("l", leftSchema))

	require.Equal(out, f.Schema())
	require.Equal("TableFunction sequence(3)\n └─ Table(l)\n", f.String())

	_, err := f.WithExpressions()
	require.True(sql.ErrInvalidExpressionNumber.Is(err))
}

func TestCalc(t *testing.T) {
	require := require.New(t)
	child := table("t", leftSchema)
	a := expression.NewGetField(0, sql.Int64, "a", false)
	b := expression.NewGetField(1, sql.Int64, "b", false)

	pb := program.NewBuilder(leftSchema)
	_, err := pb.AddProject(a, "")
	require.NoError(err)
	_, err = pb.AddProject(expression.NewCall(function.Plus, a, b), "s")
	require.NoError(err)
	require.NoError(pb.AddCondition(expression.NewCall(function.GreaterThan, a, b)))
	p, err := pb.Program()
	require.NoError(err)

	c := plan.NewCalc(p, child)
	require.Equal([]string{"a", "s"}, c.Schema().Names())
	require.Equal(
		"Calc(a, (a + b) as s, where (a > b))\n"+
			" └─ Table(t)\n",
		c.String(),
	)

	tagged := c.WithBackend("X")
	require.Equal("", c.Backend)
	require.Equal("X", tagged.Backend)
	require.Equal(
		"Calc[X](a, (a + b) as s, where (a > b))\n"+
			" └─ Table(t)\n",
		tagged.String(),
	)

	n, err := tagged.WithChildren(table("u", leftSchema))
	require.NoError(err)
	require.Equal("X", n.(*plan.Calc).Backend)
}
