package models

// Sequence is the counter row behind one identifier scope, e.g.
// "transaction:2025-01:VAL-B-NCR". Value is the last number handed out.
type Sequence struct {
	Scope string `gorm:"primaryKey;size:120" json:"scope"`
	Value int64  `gorm:"not null;default:0" json:"value"`
}

// TableName specifies the table name for the Sequence model
func (Sequence) TableName() string {
	return "sequences"
}
