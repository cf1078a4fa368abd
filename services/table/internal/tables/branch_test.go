package tables

import (
	"encoding/json"
	"testing"
)

func TestBranchFindTable(t *testing.T) {
	b := testBranch()

	table, ok := b.FindTable(5)
	if !ok || table.Capacity != 4 {
		t.Errorf("FindTable(5) = %+v, %v", table, ok)
	}
	if _, ok := b.FindTable(9); ok {
		t.Error("FindTable(9) found a missing table")
	}
}

func TestBranchSuitableTables(t *testing.T) {
	b := testBranch()

	tests := []struct {
		name  string
		party int
		want  []int
	}{
		{name: "couple", party: 2, want: []int{1, 2, 5}},
		{name: "four", party: 4, want: []int{2, 5}},
		{name: "six", party: 6, want: []int{2}},
		{name: "tooMany", party: 7, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tableNumbers(b.SuitableTables(tt.party))
			if len(got) != len(tt.want) {
				t.Fatalf("SuitableTables(%d) = %v, want %v", tt.party, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SuitableTables(%d) = %v, want %v", tt.party, got, tt.want)
				}
			}
		})
	}
}

func TestBranchTotalCapacity(t *testing.T) {
	if got := testBranch().TotalCapacity(); got != 12 {
		t.Errorf("TotalCapacity() = %d, want 12", got)
	}
}

func TestTableUnmarshalDefaultsAvailability(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{name: "omitted", json: `{"tableNumber":1,"capacity":2}`, want: true},
		{name: "explicitFalse", json: `{"tableNumber":1,"capacity":2,"isAvailable":false}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var table Table
			if err := json.Unmarshal([]byte(tt.json), &table); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if table.IsAvailable != tt.want {
				t.Errorf("IsAvailable = %v, want %v", table.IsAvailable, tt.want)
			}
		})
	}
}

func TestBranchBeforeCreateNormalizesTables(t *testing.T) {
	b := NewBranch()
	b.Tables = []Table{{TableNumber: 1, Capacity: 2}}
	b.BeforeCreate()

	if b.Tables[0].TableType != TableIndoor {
		t.Errorf("TableType = %q, want indoor", b.Tables[0].TableType)
	}
	if b.Tables[0].Features == nil {
		t.Error("Features should not be nil")
	}
	if b.Address.Country != DefaultCountry {
		t.Errorf("Country = %q, want %q", b.Address.Country, DefaultCountry)
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}
