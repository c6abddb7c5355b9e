package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Route{},
	&RouteMarker{},
}

////////////////////////
// CATALOGUE MODELS
////////////////////////

// Route is a persisted spray wall route
type Route struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"index:idx_route_created_at"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
	Name        string         `json:"name" gorm:"size:127;not null"`
	Grade       string         `json:"grade" gorm:"size:3;not null"`
	GradeRank   int            `json:"-" gorm:"index:idx_route_grade_rank"`
	Description string         `json:"description" gorm:"size:2000"`
	SetterName  string         `json:"setterName" gorm:"size:64;index:idx_route_setter"`
	Styles      datatypes.JSON `json:"style"`
	Instagram   string         `json:"instagram" gorm:"size:30"`
	Image       string         `json:"image" gorm:"size:255;not null"`
	Markers     []RouteMarker  `json:"markers" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:RouteID"`
}

func (*Route) TableName() string {
	return "routes"
}

// BeforeCreate assigns the store-side identifier
func (r *Route) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RouteMarker is one hold marker of a route. Seq keeps insertion order.
type RouteMarker struct {
	ID      uint    `json:"-" gorm:"primarykey;autoIncrement"`
	RouteID string  `json:"-" gorm:"size:36;index:idx_route_marker_route_id"`
	Seq     int     `json:"-"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Type    string  `json:"type" gorm:"size:16"`
}

func (*RouteMarker) TableName() string {
	return "route_markers"
}
