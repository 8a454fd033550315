package domain

import "time"

// MachineTelemetry 标准化后的机台遥测（写入 machine:telemetry:stream）
type MachineTelemetry struct {
	MachineSN      string         `json:"machineSN"`
	MachineName    string         `json:"machineName"`
	ProductionArea string         `json:"productionArea"`
	GatewayID      string         `json:"gatewayId"`
	Topic          string         `json:"topic"`
	ShotCount      *int64         `json:"shotCount,omitempty"`   // 累计模次
	CycleSecond    *float64       `json:"cycleSecond,omitempty"` // 实际成型秒数
	RunState       string         `json:"runState,omitempty"`    // running / idle / alarm
	Raw            map[string]any `json:"raw"`
	ReceivedAt     time.Time      `json:"receivedAt"`
}
