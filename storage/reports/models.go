package reports

import (
	"time"

	"github.com/google/uuid"
)

// Report is the persisted header of a verification run.
type Report struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	Network  string    `gorm:"index"`
	Source   string    `gorm:"index"`
	Started  time.Time `gorm:"index"`
	Finished time.Time
	Total    int
	Failures int
	Checks   []Check `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE"`
}

// Check is one persisted check result.
type Check struct {
	ID       uint      `gorm:"primaryKey"`
	ReportID uuid.UUID `gorm:"type:uuid;index"`
	Position int
	Name     string
	Kind     string `gorm:"index"`
	Market   string `gorm:"index"`
	Passed   bool
	Expected string
	Actual   string
	Error    string
}
