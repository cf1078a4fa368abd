package tables

import (
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const DefaultCountry = "India"

type Address struct {
	Street  string `json:"street" bson:"street" validate:"required"`
	City    string `json:"city" bson:"city" validate:"required"`
	State   string `json:"state" bson:"state" validate:"required"`
	ZipCode string `json:"zipCode" bson:"zip_code" validate:"required"`
	Country string `json:"country" bson:"country"`
}

type Contact struct {
	Phone string `json:"phone" bson:"phone" validate:"required"`
	Email string `json:"email" bson:"email" validate:"required,email"`
}

type Branch struct {
	ID             uuid.UUID      `json:"id" bson:"_id"`
	Name           string         `json:"name" bson:"name"`
	Address        Address        `json:"address" bson:"address"`
	Contact        Contact        `json:"contact" bson:"contact"`
	OperatingHours OperatingHours `json:"operatingHours" bson:"operating_hours"`
	Tables         []Table        `json:"tables" bson:"tables"`
	Amenities      []string       `json:"amenities" bson:"amenities"`
	IsActive       bool           `json:"isActive" bson:"is_active"`
	CreatedAt      time.Time      `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updated_at"`
}

func NewBranch() *Branch {
	return &Branch{
		ID:        aqm.GenerateNewID(),
		Tables:    []Table{},
		Amenities: []string{},
		IsActive:  true,
	}
}

func (b *Branch) GetID() uuid.UUID {
	return b.ID
}

func (b *Branch) ResourceType() string {
	return "branch"
}

func (b *Branch) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = aqm.GenerateNewID()
	}
}

func (b *Branch) BeforeCreate() {
	b.EnsureID()
	b.normalize()
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
}

func (b *Branch) BeforeUpdate() {
	b.normalize()
	b.UpdatedAt = time.Now().UTC()
}

func (b *Branch) normalize() {
	if strings.TrimSpace(b.Address.Country) == "" {
		b.Address.Country = DefaultCountry
	}
	b.Contact.Email = strings.ToLower(strings.TrimSpace(b.Contact.Email))
	if b.Tables == nil {
		b.Tables = []Table{}
	}
	if b.Amenities == nil {
		b.Amenities = []string{}
	}
	for i := range b.Tables {
		b.Tables[i].normalize()
	}
}

// FindTable returns the first table carrying number.
func (b *Branch) FindTable(number int) (Table, bool) {
	for _, t := range b.Tables {
		if t.TableNumber == number {
			return t, true
		}
	}
	return Table{}, false
}

// SuitableTables returns the in-service tables that can seat partySize.
func (b *Branch) SuitableTables(partySize int) []Table {
	suitable := []Table{}
	for _, t := range b.Tables {
		if t.IsAvailable && t.Fits(partySize) {
			suitable = append(suitable, t)
		}
	}
	return suitable
}

// TotalCapacity sums the seats of every in-service table.
func (b *Branch) TotalCapacity() int {
	total := 0
	for _, t := range b.Tables {
		if t.IsAvailable {
			total += t.Capacity
		}
	}
	return total
}

func (b *Branch) FullAddress() string {
	parts := []string{}
	for _, p := range []string{b.Address.Street, b.Address.City, b.Address.State, b.Address.ZipCode, b.Address.Country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// duplicateTableNumbers returns the table numbers used more than once.
func duplicateTableNumbers(tables []Table) []int {
	seen := map[int]bool{}
	dups := []int{}
	for _, t := range tables {
		if seen[t.TableNumber] {
			dups = append(dups, t.TableNumber)
			continue
		}
		seen[t.TableNumber] = true
	}
	return dups
}
