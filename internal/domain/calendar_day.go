package domain

import "time"

// DateLayout 日历日期格式
const DateLayout = "2006-01-02"

// CalendarDay 日历（对应 calendar 表，一天一行）
type CalendarDay struct {
	Date        time.Time `db:"date" json:"date"`               // DATE, PRIMARY KEY
	IsHoliday   bool      `db:"is_holiday" json:"isHoliday"`    // BOOLEAN, NOT NULL
	Category    string    `db:"category" json:"category"`       // VARCHAR(50), nullable（如 "國定假日" / "補班"）
	Description string    `db:"description" json:"description"` // TEXT, nullable
}

// DateKey 日期的 YYYY-MM-DD 表示（按存储的年月日，不做时区换算）
func (d CalendarDay) DateKey() string {
	return d.Date.Format(DateLayout)
}
