package courses

import "time"

// Course is owned by the catalog. Prices are in minor units (paise).
type Course struct {
	ID              uint `gorm:"primaryKey"`
	InstructorID    uint `gorm:"not null;index"`
	Title           string
	Price           int64  `gorm:"not null"`
	DiscountedPrice *int64 `gorm:"column:discounted_price"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ReferencePrice is the price plans are quoted from.
func (c Course) ReferencePrice() int64 {
	if c.DiscountedPrice != nil {
		return *c.DiscountedPrice
	}
	return c.Price
}

type Enrollment struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_enrollments_user_course"`
	CourseID  uint `gorm:"not null;uniqueIndex:idx_enrollments_user_course;index"`
	CreatedAt time.Time
}
