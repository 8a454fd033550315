package domain

// Machine 成型机台（对应 machine 表）
type Machine struct {
	MachineSN      string  `db:"machine_sn" json:"machineSN"`           // VARCHAR(50), PRIMARY KEY
	MachineName    string  `db:"machine_name" json:"machineName"`       // VARCHAR(100)
	ProductionArea string  `db:"production_area" json:"productionArea"` // 生产区域，如 "A"
	Brand          string  `db:"brand" json:"brand,omitempty"`
	Tonnage        float64 `db:"tonnage" json:"tonnage,omitempty"` // 锁模力（吨）
	Status         string  `db:"status" json:"status"`             // 'active' / 'maintenance' / 'retired'
}

const (
	MachineStatusActive      = "active"
	MachineStatusMaintenance = "maintenance"
	MachineStatusRetired     = "retired"
)
