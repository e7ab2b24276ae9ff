package models

// 层级节点与文件记录的状态
const (
	StatusActive             = "ACTIVE"
	StatusClosed             = "CLOSED"
	StatusTrashed            = "TRASHED"
	StatusTrashedPermanently = "TRASHED_PERMANENTLY"
)

// 文件内容的上传状态
const (
	ContentStatusUploading = "UPLOADING"
	ContentStatusUploaded  = "UPLOADED"
	ContentStatusAborted   = "ABORTED"
	ContentStatusFailed    = "FAILED"
	ContentStatusActive    = "ACTIVE"
)

// 审计流动作，输出到同步接口前统一转小写
const (
	ActionCreate            = "CREATE"
	ActionUpdate            = "UPDATE"
	ActionMove              = "MOVE"
	ActionDelete            = "DELETE"
	ActionDeletePermanently = "DELETE_PERMANENTLY"
	ActionRecover           = "RECOVER"
	ActionUploadStarted     = "UPLOAD_STARTED"
	ActionUploadCompleted   = "UPLOAD_COMPLETED"
	ActionUploadAborted     = "UPLOAD_ABORTED"
	ActionConflictResolved  = "CONFLICT_RESOLVED"
)

// 冲突解决策略
const (
	ResolutionKeepBoth       = "CREATE_TWO_FILES"
	ResolutionKeepOneVersion = "KEEP_ONE_VERSION"
)
