package mirror

// PendingDelete marks a record removed on this device whose deletion has not
// reached the mirror service yet.
type PendingDelete struct {
	RecordID        string `gorm:"column:record_id;primaryKey;size:64;not null"`
	QueuedAtSeconds int64  `gorm:"column:queued_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PendingDelete) TableName() string {
	return "pending_mirror_deletes"
}
