package integrity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payerIndex(bcs ...string) *ReferenceIndex {
	refs := make([]CustomerRef, len(bcs))
	for i, bc := range bcs {
		refs[i] = CustomerRef{ID: "id-" + bc, BCCustomerNumber: bc, Category: "Kommun"}
	}
	return NewReferenceIndex(refs, nil, time.Time{})
}

func edges(pairs ...[2]string) []PayerRow {
	rows := make([]PayerRow, len(pairs))
	for i, p := range pairs {
		rows[i] = PayerRow{RowNumber: i + 1, Action: ActionCreate, CustomerBCNumber: p[0], PayerBCNumber: p[1]}
	}
	return rows
}

func cycleIssues(res SheetValidationResult) []ValidationIssue {
	return issuesContaining(res.Issues, "bildar en cykel")
}

func TestValidatePayers_ThreeNodeCycle(t *testing.T) {
	rows := edges([2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "A"})

	res := ValidatePayers(rows, payerIndex("A", "B", "C"), nil)

	requireTallyInvariant(t, res)
	cycles := cycleIssues(res)
	require.Len(t, cycles, 1)
	assert.Equal(t, 0, cycles[0].RowNumber)
	assert.Equal(t, SeverityError, cycles[0].Severity)
	assert.Equal(t, "payerBcNumber", cycles[0].Field)
	assert.Equal(t, "A", cycles[0].EntityKey)
	assert.Contains(t, cycles[0].Message, "A → B → C → A")
	assert.Equal(t, 3, res.RowsWithErrors)
}

func TestValidatePayers_Chain(t *testing.T) {
	rows := edges([2]string{"A", "B"}, [2]string{"B", "C"})

	res := ValidatePayers(rows, payerIndex("A", "B", "C"), nil)

	requireTallyInvariant(t, res)
	assert.Empty(t, res.Issues)
	assert.Equal(t, 2, res.RowsValid)
}

func TestValidatePayers_TailIntoCycle(t *testing.T) {
	rows := edges([2]string{"D", "A"}, [2]string{"A", "B"}, [2]string{"B", "A"})

	res := ValidatePayers(rows, payerIndex("A", "B", "D"), nil)

	requireTallyInvariant(t, res)
	cycles := cycleIssues(res)
	require.Len(t, cycles, 1)
	assert.Equal(t, "A", cycles[0].EntityKey)
	assert.Contains(t, cycles[0].Message, "A → B → A")
	assert.Equal(t, 2, res.RowsWithErrors)
	assert.Equal(t, 1, res.RowsValid, "the tail row is not part of the cycle")
}

func TestValidatePayers_TwoSeparateCycles(t *testing.T) {
	rows := edges(
		[2]string{"A", "B"}, [2]string{"B", "A"},
		[2]string{"X", "Y"}, [2]string{"Y", "X"},
	)

	res := ValidatePayers(rows, payerIndex("A", "B", "X", "Y"), nil)

	requireTallyInvariant(t, res)
	assert.Len(t, cycleIssues(res), 2)
	assert.Equal(t, 4, res.RowsWithErrors)
}

func TestValidatePayers_LastEdgeWins(t *testing.T) {
	rows := edges([2]string{"A", "B"}, [2]string{"B", "A"}, [2]string{"B", "C"})

	res := ValidatePayers(rows, payerIndex("A", "B", "C"), nil)

	requireTallyInvariant(t, res)
	assert.Empty(t, cycleIssues(res))
	assert.Equal(t, 3, res.RowsValid)
}

func TestValidatePayers_DeleteRowsAddNoEdges(t *testing.T) {
	rows := edges([2]string{"A", "B"}, [2]string{"B", "A"})
	rows[1].Action = ActionDelete

	res := ValidatePayers(rows, payerIndex("A", "B"), nil)

	assert.Empty(t, res.Issues)
	assert.Equal(t, 2, res.RowsValid)
}

func TestValidatePayers_SelfReference(t *testing.T) {
	rows := edges([2]string{"A", "A"})

	res := ValidatePayers(rows, payerIndex("A"), nil)

	requireTallyInvariant(t, res)
	require.Len(t, res.Issues, 1)
	assert.Contains(t, res.Issues[0].Message, "sin egen betalare")
	assert.Equal(t, 1, res.RowsRead)
	assert.Equal(t, 1, res.RowsWithErrors)
	assert.Empty(t, cycleIssues(res))
}

func TestValidatePayers_References(t *testing.T) {
	tests := []struct {
		name      string
		row       PayerRow
		newBC     map[string]struct{}
		wantField []string
	}{
		{"both sides exist", PayerRow{RowNumber: 1, Action: ActionCreate, CustomerBCNumber: "A", PayerBCNumber: "B"}, nil, nil},
		{"payer created in batch", PayerRow{RowNumber: 1, Action: ActionCreate, CustomerBCNumber: "A", PayerBCNumber: "NEW"}, map[string]struct{}{"NEW": {}}, nil},
		{"unknown customer", PayerRow{RowNumber: 1, Action: ActionCreate, CustomerBCNumber: "Q", PayerBCNumber: "B"}, nil, []string{"customerBcNumber"}},
		{"unknown payer", PayerRow{RowNumber: 1, Action: ActionCreate, CustomerBCNumber: "A", PayerBCNumber: "Q"}, nil, []string{"payerBcNumber"}},
		{"missing both", PayerRow{RowNumber: 1, Action: ActionUpdate}, nil, []string{"customerBcNumber", "payerBcNumber"}},
		{"bad action", PayerRow{RowNumber: 1, Action: "LINK", CustomerBCNumber: "A", PayerBCNumber: "B"}, nil, []string{"action"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidatePayers([]PayerRow{tt.row}, payerIndex("A", "B"), tt.newBC)

			requireTallyInvariant(t, res)
			var fields []string
			for _, is := range res.Issues {
				fields = append(fields, is.Field)
			}
			assert.Equal(t, tt.wantField, fields)
		})
	}
}

func TestDetectPayerCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		want  []PayerCycle
	}{
		{"empty", nil, nil},
		{"chain", [][2]string{{"A", "B"}, {"B", "C"}}, nil},
		{"two cycle", [][2]string{{"A", "B"}, {"B", "A"}}, []PayerCycle{{Origin: "A", Nodes: []string{"A", "B"}}}},
		{"entered from tail", [][2]string{{"T", "B"}, {"B", "C"}, {"C", "B"}}, []PayerCycle{{Origin: "T", Nodes: []string{"B", "C"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewPayerGraph()
			for _, e := range tt.edges {
				g.SetPayer(e[0], e[1])
			}
			assert.Equal(t, tt.want, DetectPayerCycles(g))
		})
	}
}

func TestPayerGraph_SetPayerReplaces(t *testing.T) {
	g := NewPayerGraph()
	g.SetPayer("A", "B")
	g.SetPayer("C", "A")
	g.SetPayer("A", "D")

	p, ok := g.Payer("A")
	assert.True(t, ok)
	assert.Equal(t, "D", p)
	assert.Equal(t, []string{"A", "C"}, g.Customers())

	_, ok = g.Payer("D")
	assert.False(t, ok)
}

func TestPayerCycle_Path(t *testing.T) {
	assert.Equal(t, "", PayerCycle{}.Path())
	assert.Equal(t, "A → B → A", PayerCycle{Nodes: []string{"A", "B"}}.Path())
}
