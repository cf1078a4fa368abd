package tables

import "encoding/json"

const (
	TableIndoor  = "indoor"
	TableOutdoor = "outdoor"
	TablePrivate = "private"
	TableBar     = "bar"
)

// Table is a seating unit owned by a branch. TableNumber is unique within
// its branch.
type Table struct {
	TableNumber int      `json:"tableNumber" bson:"table_number" validate:"min=1"`
	Capacity    int      `json:"capacity" bson:"capacity" validate:"min=1"`
	TableType   string   `json:"tableType" bson:"table_type" validate:"omitempty,oneof=indoor outdoor private bar"`
	IsAvailable bool     `json:"isAvailable" bson:"is_available"`
	Features    []string `json:"features" bson:"features" validate:"omitempty,dive,oneof=window garden-view pool-side smoking non-smoking"`
}

// Fits reports whether the table can seat partySize guests.
func (t Table) Fits(partySize int) bool {
	return t.Capacity >= partySize
}

// normalize fills the defaults a table gets when created without them.
func (t *Table) normalize() {
	if t.TableType == "" {
		t.TableType = TableIndoor
	}
	if t.Features == nil {
		t.Features = []string{}
	}
}

// UnmarshalJSON defaults IsAvailable to true when the payload omits it.
func (t *Table) UnmarshalJSON(data []byte) error {
	type plain Table
	p := plain{IsAvailable: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Table(p)
	return nil
}
