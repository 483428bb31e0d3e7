package models

// Client is an agency client account. Every task belongs to a client and the
// client's account manager transitively owns everything underneath it.
type Client struct {
	BaseModel

	Name      string `gorm:"not null;index" json:"name"`
	ManagerID string `gorm:"type:uuid;not null;index" json:"manager_id"`
	Manager   *User  `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`

	ContactEmail string `json:"contact_email"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	Tasks []Task `gorm:"foreignKey:ClientID" json:"-"`
}
