package db

// ProofSession is one run of the proof server against a source file.
// EndedAt stays 0 while the session is live.
type ProofSession struct {
	SessionID   string `gorm:"column:session_id;primaryKey"`
	SourceFile  string `gorm:"column:source_file;not null;default:''"`
	Command     string `gorm:"column:command;not null;default:''"`
	Outcome     string `gorm:"column:outcome;not null;default:''"`
	NodeCount   int    `gorm:"column:node_count;not null;default:0"`
	ProvedRoots int    `gorm:"column:proved_roots;not null;default:0"`
	StartedAt   int64  `gorm:"column:started_at;not null;default:0"`
	EndedAt     int64  `gorm:"column:ended_at;not null;default:0"`
}

func (ProofSession) TableName() string { return "proof_sessions" }

// NodeSnapshot is one tree row as it stood when its session ended.
// Position keeps the pre-order of the snapshot.
type NodeSnapshot struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID     string `gorm:"column:session_id;not null"`
	Position      int    `gorm:"column:position;not null;default:0"`
	NodeID        int    `gorm:"column:node_id;not null"`
	ParentID      int    `gorm:"column:parent_id;not null;default:0"`
	DisplayParent int    `gorm:"column:display_parent;not null;default:0"`
	Name          string `gorm:"column:name;not null;default:''"`
	NodeType      string `gorm:"column:node_type;not null;default:''"`
	Status        string `gorm:"column:status;not null;default:''"`
	Color         string `gorm:"column:color;not null;default:''"`
}

func (NodeSnapshot) TableName() string { return "node_snapshots" }
