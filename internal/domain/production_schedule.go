package domain

import "time"

// ScheduleStatus 制令单排程状态
type ScheduleStatus string

const (
	ScheduleStatusNotYetOnMachine ScheduleStatus = "not_yet_on_machine"
	ScheduleStatusOnGoing         ScheduleStatus = "on_going"
	ScheduleStatusPaused          ScheduleStatus = "paused"
	ScheduleStatusFinished        ScheduleStatus = "finished"
	ScheduleStatusDelayed         ScheduleStatus = "delayed"
	ScheduleStatusDelayedFinished ScheduleStatus = "delayed_finished"
)

// Valid 是否为已知状态
func (s ScheduleStatus) Valid() bool {
	switch s {
	case ScheduleStatusNotYetOnMachine, ScheduleStatusOnGoing, ScheduleStatusPaused,
		ScheduleStatusFinished, ScheduleStatusDelayed, ScheduleStatusDelayedFinished:
		return true
	}
	return false
}

// Terminal 完工（含延迟完工）后不能再开新的生产段
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleStatusFinished || s == ScheduleStatusDelayedFinished
}

// ProductionSchedule 生产排程（对应 production_schedule 表）
type ProductionSchedule struct {
	ID                  int64          `db:"id" json:"id"`                                   // BIGSERIAL, PRIMARY KEY
	MachineSN           string         `db:"machine_sn" json:"machineSN"`                    // FK to machine
	WorkOrderSN         string         `db:"work_order_sn" json:"workOrderSN"`               // 制令单号
	WorkOrderQuantity   int64          `db:"work_order_quantity" json:"workOrderQuantity"`   // 制令数量
	MoldingSecond       float64        `db:"molding_second" json:"moldingSecond"`            // 成型秒数
	HourlyCapacity      int64          `db:"hourly_capacity" json:"hourlyCapacity"`          // 时产能
	DailyCapacity       int64          `db:"daily_capacity" json:"dailyCapacity"`            // 日产能
	WorkDays            int            `db:"work_days" json:"workDays"`                      // 需要的工作日
	PlanOnMachineDate   time.Time      `db:"plan_on_machine_date" json:"planOnMachineDate"`  // TIMESTAMPTZ
	PlanFinishDate      time.Time      `db:"plan_finish_date" json:"planFinishDate"`         // TIMESTAMPTZ
	ActualOnMachineDate *time.Time     `db:"actual_on_machine_date" json:"actualOnMachineDate"`
	ActualFinishDate    *time.Time     `db:"actual_finish_date" json:"actualFinishDate"`
	Status              ScheduleStatus `db:"status" json:"status"`
}
