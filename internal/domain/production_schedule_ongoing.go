package domain

import "time"

// ProductionScheduleOngoing 排程的一段连续生产（对应 production_schedule_ongoing 表）
// 暂停后恢复会新建一行；同一排程最多一行 EndTime 为空
type ProductionScheduleOngoing struct {
	ID                   int64      `db:"id" json:"id"`                                     // BIGSERIAL, PRIMARY KEY
	ProductionScheduleID int64      `db:"production_schedule_id" json:"productionScheduleId"` // FK to production_schedule
	StartTime            time.Time  `db:"start_time" json:"startTime"`                      // TIMESTAMPTZ, NOT NULL
	EndTime              *time.Time `db:"end_time" json:"endTime"`                          // TIMESTAMPTZ, nullable
	PostponeTime         *time.Time `db:"postpone_time" json:"postponeTime"`                // TIMESTAMPTZ, nullable
}

// Open 该段是否仍在生产中
func (o *ProductionScheduleOngoing) Open() bool {
	return o.EndTime == nil
}
